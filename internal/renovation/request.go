package renovation

import (
	"errors"
	"fmt"
	"strings"
)

// RoomCategory names the kind of room shown in the photo.
type RoomCategory string

// UpdateCategory names the kind of renovation requested.
type UpdateCategory string

const (
	RoomKitchen    RoomCategory = "Kitchen"
	RoomBathroom   RoomCategory = "Bathroom"
	RoomLivingRoom RoomCategory = "Living Room"
	RoomPatio      RoomCategory = "Patio"
	RoomBedroom    RoomCategory = "Bedroom"
)

const (
	UpdateFlooring    UpdateCategory = "Flooring"
	UpdatePaint       UpdateCategory = "Paint"
	UpdateCabinets    UpdateCategory = "Cabinets"
	UpdateFullRemodel UpdateCategory = "Full Remodel"
)

// ErrInvalidRequest is returned for unknown categories or missing refinement text.
var ErrInvalidRequest = errors.New("renovation: invalid request")

// Rooms lists the selectable room categories in display order.
func Rooms() []RoomCategory {
	return []RoomCategory{RoomKitchen, RoomBathroom, RoomLivingRoom, RoomPatio, RoomBedroom}
}

// Updates lists the selectable update categories in display order.
func Updates() []UpdateCategory {
	return []UpdateCategory{UpdateFlooring, UpdatePaint, UpdateCabinets, UpdateFullRemodel}
}

// ParseRoom matches raw input against the room catalog, ignoring case and spacing.
func ParseRoom(raw string) (RoomCategory, error) {
	for _, room := range Rooms() {
		if sameLabel(string(room), raw) {
			return room, nil
		}
	}
	return "", fmt.Errorf("%w: unknown room %q", ErrInvalidRequest, raw)
}

// ParseUpdate matches raw input against the update catalog, ignoring case and spacing.
func ParseUpdate(raw string) (UpdateCategory, error) {
	for _, update := range Updates() {
		if sameLabel(string(update), raw) {
			return update, nil
		}
	}
	return "", fmt.Errorf("%w: unknown update %q", ErrInvalidRequest, raw)
}

func sameLabel(label, raw string) bool {
	normalize := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
		return strings.Join(strings.Fields(s), " ")
	}
	return normalize(label) == normalize(raw)
}

// Request describes one generation or refinement attempt. It is built fresh for
// every call and never mutated afterwards.
type Request struct {
	room        RoomCategory
	update      UpdateCategory
	description string
	instruction string
}

// NewGenerationRequest validates the categories. The description may be empty.
func NewGenerationRequest(room, update, description string) (Request, error) {
	r, err := ParseRoom(room)
	if err != nil {
		return Request{}, err
	}
	u, err := ParseUpdate(update)
	if err != nil {
		return Request{}, err
	}
	return Request{room: r, update: u, description: strings.TrimSpace(description)}, nil
}

// NewRefinementRequest wraps a follow-up edit instruction, which must not be blank.
func NewRefinementRequest(instruction string) (Request, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return Request{}, fmt.Errorf("%w: refinement instruction is required", ErrInvalidRequest)
	}
	return Request{instruction: instruction}, nil
}

func (r Request) Room() RoomCategory { return r.room }
func (r Request) Update() UpdateCategory { return r.update }
func (r Request) Description() string { return r.description }
func (r Request) Instruction() string { return r.instruction }
func (r Request) IsRefinement() bool { return r.instruction != "" }
func (r Request) IsZero() bool { return r == Request{} }

// SpecLine is the one-line "room | update | details" summary used when no
// model-written summary is available.
func (r Request) SpecLine() string {
	if r.IsRefinement() {
		return "Refinement | " + r.instruction
	}
	parts := []string{string(r.room), string(r.update)}
	if r.description != "" {
		parts = append(parts, r.description)
	}
	return strings.Join(parts, " | ")
}
