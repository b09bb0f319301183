package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// NewConversationID returns an id of the form conv_<unix-ms>_<9 random chars>
func NewConversationID(now time.Time) string {
	return fmt.Sprintf("conv_%d_%s", now.UnixMilli(), randomSuffix(9))
}

// NewMessageID returns a random message id
func NewMessageID() string {
	return uuid.NewString()
}

// NewModuleID returns an id of the form mod_<random>
func NewModuleID() string {
	return "mod_" + randomSuffix(9)
}

func randomSuffix(n int) string {
	s := strings.ToLower(shortuuid.New())
	if len(s) > n {
		s = s[:n]
	}
	return s
}
