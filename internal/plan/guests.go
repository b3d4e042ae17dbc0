package plan

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/MarcoPoloResearchLab/seatplan/internal/seating"
	"github.com/go-playground/validator/v10"
)

// GuestDraft is the editable form of a guest submitted by a client.
type GuestDraft struct {
	Name           string           `json:"name" validate:"required,max=200"`
	Email          string           `json:"email" validate:"omitempty,email,max=320"`
	Phone          string           `json:"phone" validate:"max=64"`
	RSVPStatus     string           `json:"rsvp_status" validate:"omitempty,rsvp_status"`
	MealPreference string           `json:"meal_preference" validate:"max=200"`
	Notes          string           `json:"notes" validate:"max=2000"`
	Companions     []CompanionDraft `json:"plus_ones" validate:"max=20,dive"`
}

// CompanionDraft is the editable form of a companion. An empty id or a
// pending id marks a companion the plan has not committed yet.
type CompanionDraft struct {
	ID             string `json:"id" validate:"max=190"`
	Pending        bool   `json:"pending"`
	Name           string `json:"name" validate:"max=200"`
	MealPreference string `json:"meal_preference" validate:"max=200"`
	Notes          string `json:"notes" validate:"max=2000"`
}

// TableDraft describes a table to create. A nil capacity uses the default.
type TableDraft struct {
	Name     string `json:"name" validate:"required,max=120"`
	Capacity *int   `json:"capacity" validate:"omitempty,min=1,max=500"`
	Shape    string `json:"shape" validate:"omitempty,table_shape"`
}

// TableUpdate lists the table attributes to change; nil fields are kept.
type TableUpdate struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Capacity *int    `json:"capacity" validate:"omitempty,min=1,max=500"`
	Shape    *string `json:"shape" validate:"omitempty,table_shape"`
}

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Enum fields accept any casing the engine parsers accept.
	_ = validate.RegisterValidation("table_shape", func(field validator.FieldLevel) bool {
		_, err := seating.ParseTableShape(field.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("rsvp_status", func(field validator.FieldLevel) bool {
		_, err := seating.ParseRSVPStatus(field.Field().String())
		return err == nil
	})
	return validate
}

// validateDraft runs the struct tags and reports the first failing field as a
// seating.ValidationError.
func validateDraft(draft any) error {
	err := draftValidator.Struct(draft)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
		first := fieldErrors[0]
		return &seating.ValidationError{
			Field:  fieldPath(first.Namespace()),
			Reason: fmt.Sprintf("failed %s", first.Tag()),
		}
	}
	return &seating.ValidationError{Field: "body", Reason: err.Error()}
}

// fieldPath drops the struct name: "GuestDraft.plus_ones[0].name" becomes "plus_ones[0].name".
func fieldPath(namespace string) string {
	segments := strings.SplitN(namespace, ".", 2)
	if len(segments) == 2 {
		return segments[1]
	}
	return namespace
}

// buildGuest turns a validated draft into a guest. Pending or blank companion
// ids are promoted to fresh stable ids; stable ids must already belong to the
// guest being edited. A blank status keeps the existing guest's status.
func buildGuest(guestID seating.GuestID, draft GuestDraft, existing *seating.Guest, ids IDProvider) (seating.Guest, error) {
	status, err := seating.ParseRSVPStatus(draft.RSVPStatus)
	if err != nil {
		return seating.Guest{}, err
	}
	if existing != nil && strings.TrimSpace(draft.RSVPStatus) == "" {
		status = existing.RSVPStatus
	}
	owned := make(map[string]struct{})
	if existing != nil {
		for _, companion := range existing.Companions {
			owned[companion.ID.String()] = struct{}{}
		}
	}

	companions := make([]seating.Companion, 0, len(draft.Companions))
	seen := make(map[string]struct{}, len(draft.Companions))
	for index, companionDraft := range draft.Companions {
		companionID, err := resolveCompanionID(companionDraft, owned, ids)
		if errors.Is(err, errIDGeneration) {
			return seating.Guest{}, err
		}
		if err != nil {
			return seating.Guest{}, &seating.ValidationError{
				Field:  fmt.Sprintf("plus_ones[%d].id", index),
				Reason: err.Error(),
			}
		}
		if _, duplicate := seen[companionID.String()]; duplicate {
			return seating.Guest{}, &seating.ValidationError{
				Field:  fmt.Sprintf("plus_ones[%d].id", index),
				Reason: "duplicate companion id",
			}
		}
		seen[companionID.String()] = struct{}{}
		companions = append(companions, seating.Companion{
			ID:             companionID,
			Name:           strings.TrimSpace(companionDraft.Name),
			MealPreference: strings.TrimSpace(companionDraft.MealPreference),
			Notes:          companionDraft.Notes,
		})
	}

	return seating.Guest{
		ID:             guestID,
		Name:           strings.TrimSpace(draft.Name),
		Email:          strings.TrimSpace(draft.Email),
		Phone:          strings.TrimSpace(draft.Phone),
		RSVPStatus:     status,
		MealPreference: strings.TrimSpace(draft.MealPreference),
		Notes:          draft.Notes,
		Companions:     companions,
	}, nil
}

func resolveCompanionID(draft CompanionDraft, owned map[string]struct{}, ids IDProvider) (seating.CompanionID, error) {
	raw := strings.TrimSpace(draft.ID)
	if raw != "" && !draft.Pending {
		if _, ok := owned[raw]; !ok {
			return seating.CompanionID{}, fmt.Errorf("unknown companion %q", raw)
		}
		return seating.StableCompanionID(raw)
	}
	if raw != "" {
		if _, err := seating.PendingCompanionID(raw); err != nil {
			return seating.CompanionID{}, err
		}
	}
	value, err := ids.NewID()
	if err != nil {
		return seating.CompanionID{}, fmt.Errorf("%w: %v", errIDGeneration, err)
	}
	return seating.StableCompanionID(value)
}

// removedCompanionIDs lists the stable ids present in before but absent from after.
func removedCompanionIDs(before, after seating.Guest) []seating.AttendeeID {
	kept := make(map[seating.AttendeeID]struct{}, len(after.Companions))
	for _, id := range seating.CompanionAttendeeIDs(after) {
		kept[id] = struct{}{}
	}
	var removed []seating.AttendeeID
	for _, id := range seating.CompanionAttendeeIDs(before) {
		if _, ok := kept[id]; !ok {
			removed = append(removed, id)
		}
	}
	return removed
}

func guestIndex(guests []seating.Guest, guestID seating.GuestID) int {
	for index, guest := range guests {
		if guest.ID == guestID {
			return index
		}
	}
	return -1
}

func replaceGuest(guests []seating.Guest, index int, guest seating.Guest) []seating.Guest {
	updated := make([]seating.Guest, len(guests))
	copy(updated, guests)
	updated[index] = guest
	return updated
}

func appendGuest(guests []seating.Guest, guest seating.Guest) []seating.Guest {
	updated := make([]seating.Guest, len(guests), len(guests)+1)
	copy(updated, guests)
	return append(updated, guest)
}

func removeGuest(guests []seating.Guest, index int) []seating.Guest {
	updated := make([]seating.Guest, 0, len(guests)-1)
	updated = append(updated, guests[:index]...)
	return append(updated, guests[index+1:]...)
}
