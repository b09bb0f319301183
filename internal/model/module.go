package model

// ModuleRequest is the body of a module matrix execute_module call
type ModuleRequest struct {
	Module string         `json:"module"`
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// IdeaSpec describes a product idea harvested from a post
type IdeaSpec struct {
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description" yaml:"description"`
	CoreFeatures   []string `json:"core_features" yaml:"core_features"`
	TargetAudience string   `json:"target_audience" yaml:"target_audience"`
	TechStack      []string `json:"tech_stack,omitempty" yaml:"tech_stack,omitempty"`
}

// SourceManifest lists the data sources an idea depends on
type SourceManifest struct {
	Sources []Source `json:"sources"`
}

// GeneratedFile is a preview of a file in a generated module
type GeneratedFile struct {
	Filename       string `json:"filename"`
	ContentPreview string `json:"content_preview"`
	Type           string `json:"type"` // config, code, schema, ui
}

// HarvestResult is the output of the idea harvester module
type HarvestResult struct {
	IdeaSpec       IdeaSpec        `json:"idea_spec"`
	SourceManifest SourceManifest  `json:"source_manifest"`
	GeneratedFiles []GeneratedFile `json:"generated_files"`
	ModuleID       string          `json:"module_id,omitempty"`
	Fallback       bool            `json:"fallback,omitempty"` // Generated locally after the module call failed
}

// ToolUse is a tool invocation reported by the engineering module
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// EngineeringResponse is the result of an engineering chat call
type EngineeringResponse struct {
	Success  bool      `json:"success"`
	Response string    `json:"response,omitempty"`
	ToolUses []ToolUse `json:"tool_uses,omitempty"`
	Error    string    `json:"error,omitempty"`
	Usage    *Usage    `json:"usage,omitempty"`
}

// Usage is token accounting reported by a module
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Vector3 is a position, size or rotation in a scene
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// PreviewElement is one part of a generated scene preview
type PreviewElement struct {
	Type     string   `json:"type"`
	Name     string   `json:"name"`
	Position Vector3  `json:"position"`
	Size     Vector3  `json:"size"`
	Color    string   `json:"color"`
	Shape    string   `json:"shape,omitempty"`
	Rotation *Vector3 `json:"rotation,omitempty"`
}

// PreviewConfig describes how to preview a generated scene
type PreviewConfig struct {
	Elements    []PreviewElement `json:"elements"`
	Lighting    string           `json:"lighting,omitempty"`
	Environment string           `json:"environment,omitempty"`
}

// SceneResult is the output of the Roblox expert module
type SceneResult struct {
	LuaCode         string        `json:"lua_code"`
	PreviewConfig   PreviewConfig `json:"preview_config"`
	ElementsCreated int           `json:"elements_created"`
	Fallback        bool          `json:"fallback,omitempty"`
}
