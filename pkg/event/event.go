package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags the variant an event carries
type Kind string

const (
	KindData   Kind = "data"
	KindError  Kind = "error"
	KindReload Kind = "reload"
)

const (
	// DefaultLifetime applies to events whose Lifetime is unset
	DefaultLifetime = time.Hour

	// ReloadID is the fixed id of reload broadcasts
	ReloadID = "reload"
)

// Event is one unit of state for an event id.
//
// Events are values: producers construct them, the source runner stamps the
// id and lifetime, and from then on they are only copied. Two events are equal
// when their ids are equal.
type Event struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	Lifetime  time.Duration

	Title    string
	MoreInfo string

	// Payload holds the data of a KindData event. Objects (maps, structs,
	// json.RawMessage) are flattened into the wire form, anything else is
	// rendered under "value".
	Payload any

	// Message and Cause describe a KindError event
	Message string
	Cause   error

	// Dashboards lists the dashboards a KindReload event addresses
	Dashboards []string

	// ApplicationID is stamped at delivery time
	ApplicationID string
}

// NewData creates a data event created now
func NewData(payload any) Event {
	return Event{Kind: KindData, CreatedAt: time.Now(), Payload: payload}
}

// NewError creates an error event created now. An empty message falls back to
// the cause's text.
func NewError(message string, cause error) Event {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return Event{Kind: KindError, CreatedAt: time.Now(), Message: message, Cause: cause}
}

// NewReload creates the non-cacheable reload broadcast
func NewReload(dashboards []string) Event {
	return Event{
		ID:         ReloadID,
		Kind:       KindReload,
		CreatedAt:  time.Now(),
		Dashboards: append([]string(nil), dashboards...),
	}
}

// Cacheable reports whether events of this kind may enter the cache
func (e Event) Cacheable() bool {
	return e.Kind != KindReload
}

// IsError reports whether e is the error variant
func (e Event) IsError() bool {
	return e.Kind == KindError
}

// EffectiveLifetime returns Lifetime, or DefaultLifetime when unset
func (e Event) EffectiveLifetime() time.Duration {
	if e.Lifetime <= 0 {
		return DefaultLifetime
	}
	return e.Lifetime
}

// ExpiresAt returns the instant after which the event is stale
func (e Event) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.EffectiveLifetime())
}

// IsValid reports whether now is before CreatedAt + lifetime
func (e Event) IsValid(now time.Time) bool {
	return now.Before(e.ExpiresAt())
}

// Equal compares identity, not content
func (e Event) Equal(other Event) bool {
	return e.ID == other.ID
}

// WithID returns a copy of e bound to id
func (e Event) WithID(id string) Event {
	e.ID = id
	return e
}

// WithLifetime returns a copy of e with the given lifetime
func (e Event) WithLifetime(d time.Duration) Event {
	e.Lifetime = d
	return e
}

// WithApplicationID returns a copy of e stamped with the application id
func (e Event) WithApplicationID(appID string) Event {
	e.ApplicationID = appID
	return e
}

func (e Event) String() string {
	switch e.Kind {
	case KindError:
		return fmt.Sprintf("%s[%s](%s)", e.Kind, e.ID, e.Message)
	default:
		return fmt.Sprintf("%s[%s]@%s", e.Kind, e.ID, e.CreatedAt.Format(time.RFC3339))
	}
}

// MarshalJSON renders the wire form consumed by dashboard widgets
func (e Event) MarshalJSON() ([]byte, error) {
	out, err := payloadFields(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of %s: %w", e.ID, err)
	}

	out["id"] = e.ID
	out["updatedAt"] = e.CreatedAt.Unix()
	if e.ApplicationID != "" {
		out["applicationId"] = e.ApplicationID
	}
	if e.Title != "" {
		out["title"] = e.Title
	}
	if e.MoreInfo != "" {
		out["moreinfo"] = e.MoreInfo
	}

	switch e.Kind {
	case KindError:
		out["error"] = true
		out["errorMessage"] = e.Message
	case KindReload:
		if len(e.Dashboards) > 0 {
			out["dashboards"] = e.Dashboards
		}
	}

	return json.Marshal(out)
}

func payloadFields(payload any) (map[string]any, error) {
	out := make(map[string]any)
	if payload == nil {
		return out, nil
	}
	if m, ok := payload.(map[string]any); ok {
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}

	var raw []byte
	switch p := payload.(type) {
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		// not an object
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out = map[string]any{"value": v}
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}
