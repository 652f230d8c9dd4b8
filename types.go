package warden

// Persona is the named voice used to compose intervention messages.
type Persona struct {
	Name         string
	Tone         string
	Catchphrases []string
}

// Profile is the user's onboarding profile as passed to a custom Generator.
// It never carries credentials.
type Profile struct {
	Identity        string
	Goal            string
	Weakness        string
	MotivationStyle string
	Intensity       string
}
