package activity

const (
	VerbSettingsSaved  = "settings.saved"
	VerbSettingsLoaded = "settings.loaded"
	VerbSettingsReset  = "settings.reset"

	// ObjectTypeSettings is the object type sinks record for every event.
	ObjectTypeSettings = "settings"
)

// ScopeContext captures the scope and snapshot a settings event refers to.
type ScopeContext struct {
	Name       string
	Label      string
	Priority   int
	ID         string
	SnapshotID string
	ETag       string
}

// BuildSettingsSavedEvent marks event as the save of its Changes. Builders
// only set the verb; hooks receive the event through NormalizeEvent.
func BuildSettingsSavedEvent(event Event) Event {
	event.Verb = VerbSettingsSaved
	return event
}

// BuildSettingsLoadedEvent marks event as the load of a snapshot into a
// record.
func BuildSettingsLoadedEvent(event Event) Event {
	event.Verb = VerbSettingsLoaded
	return event
}

// BuildSettingsResetEvent marks event as the removal of stored keys.
func BuildSettingsResetEvent(event Event) Event {
	event.Verb = VerbSettingsReset
	return event
}
