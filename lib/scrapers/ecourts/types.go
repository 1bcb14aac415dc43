package ecourts

import "time"

type HierarchyLevel string

const (
	LevelState    HierarchyLevel = "state"
	LevelDistrict HierarchyLevel = "district"
	LevelComplex  HierarchyLevel = "complex"
	LevelCourt    HierarchyLevel = "court"
)

// HierarchyNode is one entry of the portal's State > District >
// Court Complex > Court tree. Codes are unique within a parent.
type HierarchyNode struct {
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	Level      HierarchyLevel `json:"level"`
	ParentCode string         `json:"parent_code,omitempty"`
}

// CaptchaChallenge is single-use: exactly one solution attempt may be
// submitted for it. A rejected or expired challenge cannot be retried;
// a new one must be issued.
type CaptchaChallenge struct {
	ID string `json:"id"`
	// data:image/png;base64 url, ready for a UI to display
	Image    string    `json:"image"`
	AudioURL string    `json:"audio,omitempty"`
	IssuedAt time.Time `json:"issued_at"`

	sessionID string
}

type CaseSearchResult struct {
	Found          bool `json:"found"`
	ListedToday    bool `json:"listed_today"`
	ListedTomorrow bool `json:"listed_tomorrow"`
	// dd-mm-yyyy, exactly as the portal authored it
	NextHearingDate string `json:"next_hearing_date,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	CourtName       string `json:"court_name,omitempty"`
	CaseStatus      string `json:"case_status,omitempty"`
	// every label/value pair the portal returned, verbatim
	Details map[string]string `json:"details,omitempty"`
}

type CauseListEntry struct {
	SerialNumber string `json:"serial_number"`
	CaseNumber   string `json:"case_number"`
	Parties      string `json:"parties"`
	Advocate     string `json:"advocate"`
	Purpose      string `json:"purpose"`
}

// CauseListResult with non-empty PortalErrors is not authoritative:
// the caller must discard it and retry. Otherwise TotalCases always
// equals len(Entries).
type CauseListResult struct {
	TotalCases   int              `json:"total_cases"`
	Entries      []CauseListEntry `json:"cases"`
	PortalErrors []string         `json:"errors,omitempty"`
	// a fresh challenge for the next fetch, when the portal rotated one
	NextChallenge *CaptchaChallenge `json:"next_captcha,omitempty"`
}

type CauseType string

const (
	CauseTypeCivil    CauseType = "civ"
	CauseTypeCriminal CauseType = "cri"
)
