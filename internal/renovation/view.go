package renovation

// MaterialView is a material suggestion with its outbound link.
type MaterialView struct {
	Item  string `json:"item"`
	Query string `json:"query"`
	URL   string `json:"url"`
}

// Columns names the result-view slots that receive each image.
type Columns struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// ViewModel is everything the presentation layer draws for a session.
type ViewModel struct {
	ID          string           `json:"id"`
	State       State            `json:"state"`
	View        View             `json:"view"`
	Busy        bool             `json:"busy"`
	HasImage    bool             `json:"has_image"`
	Source      CaptureSource    `json:"source,omitempty"`
	Room        RoomCategory     `json:"room,omitempty"`
	Update      UpdateCategory   `json:"update,omitempty"`
	Description string           `json:"description,omitempty"`
	Summary     string           `json:"summary,omitempty"`
	Rationale   string           `json:"rationale,omitempty"`
	Materials   []MaterialView   `json:"materials"`
	Columns     Columns          `json:"columns"`
	Refinements int              `json:"refinements"`
	HasReport   bool             `json:"has_report"`
	ReportETag  string           `json:"report_etag,omitempty"`
	Error       string           `json:"error,omitempty"`
	Rooms       []RoomCategory   `json:"rooms"`
	Updates     []UpdateCategory `json:"updates"`
}

// Render is a pure function of the session: same session, same view.
func Render(s Session, searchTemplate string) ViewModel {
	vm := ViewModel{
		ID:          s.ID,
		State:       s.State,
		View:        s.View(),
		Busy:        s.State.Busy(),
		HasImage:    !s.Original.Empty(),
		Source:      s.Source,
		Refinements: s.Refines,
		Error:       s.LastError,
		Materials:   []MaterialView{},
		Rooms:       Rooms(),
		Updates:     Updates(),
	}
	if vm.HasImage {
		vm.Columns.Before = "/api/sessions/" + s.ID + "/images/before"
	}
	if !s.Request.IsZero() {
		vm.Room = s.Request.Room()
		vm.Update = s.Request.Update()
		vm.Description = s.Request.Description()
	}
	if s.HasResult() {
		vm.Columns.After = "/api/sessions/" + s.ID + "/images/after"
		vm.Summary = s.Summary
		vm.Rationale = s.Rationale
		vm.HasReport = true
		vm.ReportETag = s.Report.ETag()
		for _, m := range s.Materials {
			vm.Materials = append(vm.Materials, MaterialView{
				Item:  m.Item,
				Query: m.Query,
				URL:   m.SearchURL(searchTemplate),
			})
		}
	}
	return vm
}
