package cxapi

// Source says where the credentials that won an authentication came from.
type Source string

const (
	// SourceExplicit: supplied by the caller for this attempt. Terminal —
	// a rejection is reported as-is, never papered over with defaults.
	SourceExplicit Source = "explicit"
	// SourceSaved: stored in the inventory for this switch.
	SourceSaved Source = "saved"
	// SourceDefault: one of the configured default pairs.
	SourceDefault Source = "default"
)

// Candidate is one credential pair tagged with its origin.
type Candidate struct {
	Credentials Credentials
	Source      Source
}

// CredentialResolver orders the credential pairs to try for a switch.
// Explicit credentials stand alone; otherwise the default pairs are tried in
// configuration order, then any credentials saved for the switch.
type CredentialResolver struct {
	Defaults []Credentials
	Saved    CredentialStore
}

// Candidates returns the ordered attempt list. With explicit credentials the
// list has exactly one entry.
func (r *CredentialResolver) Candidates(switchIP string, explicit *Credentials) []Candidate {
	if explicit != nil {
		return []Candidate{{Credentials: *explicit, Source: SourceExplicit}}
	}

	var out []Candidate
	for _, d := range r.Defaults {
		out = append(out, Candidate{Credentials: d, Source: SourceDefault})
	}
	if r.Saved != nil {
		if saved, ok := r.Saved.SavedCredentials(switchIP); ok {
			out = append(out, Candidate{Credentials: saved, Source: SourceSaved})
		}
	}
	if len(out) == 0 {
		out = []Candidate{{Credentials: Credentials{Username: "admin"}, Source: SourceDefault}}
	}
	return out
}
