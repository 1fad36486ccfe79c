package crm

// Stats is the aggregate view of the user base sent to the analysis service.
type Stats struct {
	Total         int            `json:"total"`
	SignedUp      int            `json:"signed_up"`
	NotEngaged    int            `json:"not_engaged"`
	BySource      map[string]int `json:"by_source"`
	ByCompanySize map[string]int `json:"by_company_size"`
	ByRole        map[string]int `json:"by_role"`
	ByIndustry    map[string]int `json:"by_industry"`
}

// NewStats returns empty stats with non-nil maps.
func NewStats() *Stats {
	return &Stats{
		BySource:      map[string]int{},
		ByCompanySize: map[string]int{},
		ByRole:        map[string]int{},
		ByIndustry:    map[string]int{},
	}
}

// Add counts u into s.
func (s *Stats) Add(u User) {
	s.Total++
	switch u.Status {
	case StatusSignedUp:
		s.SignedUp++
	case StatusNotEngaged:
		s.NotEngaged++
	}
	s.BySource[string(u.Source)]++
	s.ByCompanySize[u.CompanySize]++
	s.ByRole[u.Role]++
	s.ByIndustry[u.Industry]++
}

// ComputeStats aggregates users.
func ComputeStats(users []User) *Stats {
	s := NewStats()
	for _, u := range users {
		s.Add(u)
	}
	return s
}

// ConversionRate is the share of users that signed up, in [0, 1].
func (s *Stats) ConversionRate() float64 {
	if s == nil || s.Total == 0 {
		return 0
	}
	return float64(s.SignedUp) / float64(s.Total)
}
