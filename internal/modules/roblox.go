package modules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/model"
	"go.uber.org/zap"
)

// SceneParams describes a scene to generate
type SceneParams struct {
	Description string
}

type sceneRequest struct {
	Action      string `json:"action"`
	Description string `json:"description"`
}

// Roblox generates Roblox scenes through the robloxexpert module
type Roblox struct {
	client   *Client
	fallback bool
	logger   *zap.Logger
}

// NewRoblox creates a scene generator. With fallback, a failed module
// call yields a locally built placeholder scene.
func NewRoblox(client *Client, fallback bool, logger *zap.Logger) *Roblox {
	return &Roblox{client: client, fallback: fallback, logger: logging.OrNop(logger)}
}

// Generate builds a scene from a description
func (r *Roblox) Generate(ctx context.Context, params SceneParams) (*model.SceneResult, error) {
	desc := strings.TrimSpace(params.Description)
	if desc == "" {
		return nil, errors.New("scene description is required")
	}

	raw, err := r.client.Proxy(ctx, "robloxexpert/execute", sceneRequest{Action: "generate_scene", Description: desc}, true)
	if err == nil {
		var result model.SceneResult
		if err = json.Unmarshal(raw, &result); err == nil {
			if result.ElementsCreated == 0 {
				result.ElementsCreated = len(result.PreviewConfig.Elements)
			}
			return &result, nil
		}
		err = fmt.Errorf("decode scene: %w", err)
	}

	if !r.fallback || ctx.Err() != nil {
		return nil, err
	}
	r.logger.Warn("Roblox expert unavailable, generating placeholder scene", zap.Error(err))
	return FallbackScene(desc), nil
}

// FallbackScene is a small forest clearing used when the module is unreachable
func FallbackScene(description string) *model.SceneResult {
	elements := []model.PreviewElement{
		{Type: "part", Name: "Ground", Position: model.Vector3{Y: -0.5}, Size: model.Vector3{X: 100, Y: 1, Z: 100}, Color: "#4a7c3f"},
		{Type: "part", Name: "TreeTrunk1", Position: model.Vector3{X: -10, Y: 5, Z: -10}, Size: model.Vector3{X: 2, Y: 10, Z: 2}, Color: "#6b4423", Shape: "cylinder"},
		{Type: "part", Name: "TreeTop1", Position: model.Vector3{X: -10, Y: 12, Z: -10}, Size: model.Vector3{X: 8, Y: 8, Z: 8}, Color: "#2d5a27", Shape: "ball"},
		{Type: "part", Name: "TreeTrunk2", Position: model.Vector3{X: 12, Y: 5, Z: -6}, Size: model.Vector3{X: 2, Y: 10, Z: 2}, Color: "#6b4423", Shape: "cylinder"},
		{Type: "part", Name: "TreeTop2", Position: model.Vector3{X: 12, Y: 12, Z: -6}, Size: model.Vector3{X: 8, Y: 8, Z: 8}, Color: "#2d5a27", Shape: "ball"},
		{Type: "part", Name: "Rock", Position: model.Vector3{X: 4, Y: 1, Z: 8}, Size: model.Vector3{X: 4, Y: 2, Z: 3}, Color: "#808080"},
		{Type: "part", Name: "Path", Position: model.Vector3{Y: 0.05}, Size: model.Vector3{X: 4, Y: 0.1, Z: 60}, Color: "#c2a878"},
		{Type: "spawn", Name: "SpawnLocation", Position: model.Vector3{Y: 1, Z: 20}, Size: model.Vector3{X: 6, Y: 1, Z: 6}, Color: "#ffffff"},
	}

	var lua strings.Builder
	fmt.Fprintf(&lua, "-- Scene: %s\n-- Generated by Roblox Expert\n\n", description)
	lua.WriteString("local folder = Instance.new(\"Folder\")\nfolder.Name = \"GeneratedScene\"\nfolder.Parent = workspace\n")
	for _, e := range elements {
		class := "Part"
		if e.Type == "spawn" {
			class = "SpawnLocation"
		}
		fmt.Fprintf(&lua, "\nlocal %s = Instance.new(%q)\n", luaIdent(e.Name), class)
		fmt.Fprintf(&lua, "%s.Name = %q\n", luaIdent(e.Name), e.Name)
		fmt.Fprintf(&lua, "%s.Size = Vector3.new(%g, %g, %g)\n", luaIdent(e.Name), e.Size.X, e.Size.Y, e.Size.Z)
		fmt.Fprintf(&lua, "%s.Position = Vector3.new(%g, %g, %g)\n", luaIdent(e.Name), e.Position.X, e.Position.Y, e.Position.Z)
		fmt.Fprintf(&lua, "%s.Color = Color3.fromHex(%q)\n", luaIdent(e.Name), e.Color)
		if e.Shape == "cylinder" {
			fmt.Fprintf(&lua, "%s.Shape = Enum.PartType.Cylinder\n", luaIdent(e.Name))
		} else if e.Shape == "ball" {
			fmt.Fprintf(&lua, "%s.Shape = Enum.PartType.Ball\n", luaIdent(e.Name))
		}
		fmt.Fprintf(&lua, "%s.Anchored = true\n%s.Parent = folder\n", luaIdent(e.Name), luaIdent(e.Name))
	}

	return &model.SceneResult{
		LuaCode: lua.String(),
		PreviewConfig: model.PreviewConfig{
			Elements:    elements,
			Lighting:    "default",
			Environment: "forest",
		},
		ElementsCreated: len(elements),
		Fallback:        true,
	}
}

func luaIdent(name string) string {
	return strings.ToLower(name[:1]) + name[1:]
}
