package crm

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MockSignedUp is the number of signed-up users in the demo data set.
	MockSignedUp = 100

	// MockNotEngaged is the number of not-engaged leads in the demo data set.
	MockNotEngaged = 200

	// MockTotal is the size of the demo data set.
	MockTotal = MockSignedUp + MockNotEngaged
)

type company struct {
	name     string
	industry string
	domain   string
}

var (
	mockCompanies = []company{
		{"Acme Corp", "SaaS", "acme.com"},
		{"Globex Inc", "FinTech", "globex.io"},
		{"Initech", "HealthTech", "initech.co"},
		{"Umbrella LLC", "E-commerce", "umbrella.dev"},
		{"Stark AI", "AI/ML", "stark.ai"},
		{"WayneTech", "DevTools", "waynetech.com"},
		{"OsCorp", "EdTech", "oscorp.io"},
		{"LexCorp", "SaaS", "lexcorp.co"},
		{"Daily Dev", "DevTools", "daily.dev"},
		{"Capsule AI", "AI/ML", "capsule.ai"},
	}
	mockSizes   = []string{"1-10", "11-50", "51-200", "201-500", "500+"}
	mockRoles   = []string{"Founder", "PM", "Marketing", "Engineering", "Sales", "CS", "Design"}
	mockSources = []Source{SourceSalesforce, SourceHubSpot}

	// mockNamespace derives stable user ids from email addresses.
	mockNamespace = uuid.NewSHA1(uuid.NameSpaceDNS, []byte("crm.apm.papercompute.co"))
)

// MockUsers returns the deterministic demo data set relative to now.
// Signed-up users get sign-up times within the last 90 days and activity
// within the last week; leads have neither.
func MockUsers(now time.Time) []User {
	now = now.UTC()
	users := make([]User, 0, MockTotal)

	for i := 1; i <= MockSignedUp; i++ {
		u := mockUser("user", "User", i, StatusSignedUp)
		signedUp := now.Add(-spread(i, 90*24*time.Hour))
		lastActive := now.Add(-spread(i*31, 7*24*time.Hour))
		u.SignedUpAt = &signedUp
		u.LastActive = &lastActive
		users = append(users, u)
	}

	for i := 1; i <= MockNotEngaged; i++ {
		users = append(users, mockUser("lead", "Lead", i, StatusNotEngaged))
	}

	// One second apart in import order so listings sort stably.
	for k := range users {
		users[k].CreatedAt = now.Add(-time.Duration(MockTotal-k) * time.Second)
	}

	return users
}

func mockUser(prefix, title string, i int, status Status) User {
	c := mockCompanies[i%len(mockCompanies)]
	email := fmt.Sprintf("%s%d@%s", prefix, i, c.domain)

	return User{
		ID:          uuid.NewSHA1(mockNamespace, []byte(email)).String(),
		Email:       email,
		Name:        fmt.Sprintf("%s %d", title, i),
		Company:     c.name,
		CompanySize: mockSizes[i%len(mockSizes)],
		Role:        mockRoles[i%len(mockRoles)],
		Industry:    c.industry,
		Source:      mockSources[i%len(mockSources)],
		Status:      status,
	}
}

// spread maps i onto a stable offset within window.
func spread(i int, window time.Duration) time.Duration {
	const step = 7919 * time.Second
	return (time.Duration(i) * step) % window
}
