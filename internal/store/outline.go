package store

// Scene is one fixed slot of the story outline.
type Scene struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Outline is the "but / therefore" story structure every storyboard follows.
var Outline = []Scene{
	{ID: "opening", Label: "Opening Scene", Description: "Set up your story"},
	{ID: "but1", Label: "But", Description: "First turning point"},
	{ID: "therefore1", Label: "Therefore", Description: "First consequence"},
	{ID: "but2", Label: "But", Description: "Second turning point"},
	{ID: "therefore2", Label: "Therefore", Description: "Second consequence"},
	{ID: "but3", Label: "But", Description: "Final challenge"},
	{ID: "therefore3", Label: "Therefore", Description: "Resolution"},
	{ID: "end", Label: "End Moment", Description: "Story climax"},
	{ID: "final", Label: "Final Shot", Description: "Closing image"},
}

// SceneIndex returns the position of id in the outline, or -1.
func SceneIndex(id string) int {
	for i, s := range Outline {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// SceneStatus pairs an outline slot with what has been filled in so far.
type SceneStatus struct {
	Scene
	HasImage    bool `json:"hasImage"`
	HasDrawing  bool `json:"hasDrawing"`
	HasDialogue bool `json:"hasDialogue"`
	Started     bool `json:"started"`
}

// Overview reports every outline slot in order.
func Overview(repo Repository) []SceneStatus {
	out := make([]SceneStatus, 0, len(Outline))
	for _, sc := range Outline {
		st := SceneStatus{Scene: sc}
		if f, err := repo.Get(sc.ID); err == nil {
			st.Started = true
			st.HasImage = len(f.ImageData) > 0
			st.HasDrawing = f.DrawingData != nil && len(f.DrawingData.Points) > 0
			st.HasDialogue = f.CharacterDialogue != ""
		}
		out = append(out, st)
	}
	return out
}

// Progress is the timeline fill for scene id, in (0, 1]. Unknown ids are 0.
func Progress(id string) float64 {
	i := SceneIndex(id)
	if i < 0 {
		return 0
	}
	return float64(i+1) / float64(len(Outline))
}
