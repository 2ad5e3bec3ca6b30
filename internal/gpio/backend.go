package gpio

// EventSink receives edge events emitted by a backend's edge listener. The
// dispatcher implements this; backends hold only the interface so they never
// depend on the registry or manager.
type EventSink interface {
	Dispatch(event EdgeEvent)
}

// Backend is the line-backend capability consumed by the pin registry.
// Two implementations are required: a real kernel-GPIO backend
// (backend_gpiocdev_linux.go) and a software mock (backend_mock.go).
type Backend interface {
	// GetSettings returns the last settings applied to pin_id, or the
	// default if the pin has never been configured. Never fails for
	// unknown pins.
	GetSettings(pinID PinId) PinSettings

	// SetSettings (re)programs the line for pin_id per cfg and settings.
	// sink is non-nil iff settings.Edge != EdgeNone.
	SetSettings(pinID PinId, cfg PinConfig, settings PinSettings, sink EventSink) error

	// ReadValue returns 0 or 1. Fails InvalidState if pin_id was never
	// configured.
	ReadValue(pinID PinId) (uint8, error)

	// WriteValue sets the line to 0 or 1. Fails InvalidState if pin_id is
	// not in a writable state.
	WriteValue(pinID PinId, value uint8) error
}

// validateSettings performs the local checks every backend must apply in
// addition to the manager's capability check.
func validateSettings(settings PinSettings) error {
	return settings.Validate()
}
