package models

// SelectedModule is one add-on the selector asked to run.
type SelectedModule struct {
	ID          string  `json:"id" validate:"required"`
	Priority    float64 `json:"priority"` // Missing priority is 0, so unprioritized modules run first
	Reason      string  `json:"reason"`
	KeyQuestion string  `json:"key_question"`
}

// AddonSelection is the validated selector decision.
type AddonSelection struct {
	RunAddons       bool             `json:"run_addons"`
	SelectedModules []SelectedModule `json:"selected_modules" validate:"dive"`
	Explanation     string           `json:"explanation,omitempty"` // Prose the model wrote before the JSON block
}

// ShouldRun reports whether the pipeline has anything to execute.
func (s *AddonSelection) ShouldRun() bool {
	return s != nil && s.RunAddons && len(s.SelectedModules) > 0
}
