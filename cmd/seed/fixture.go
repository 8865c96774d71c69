package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/utils"
)

// Fixture is the on-disk seed format.
type Fixture struct {
	Settings []SettingFixture `yaml:"settings"`
	Users    []UserFixture    `yaml:"users"`
	Trips    []TripFixture    `yaml:"trips"`
}

// SettingFixture is a runtime config entry, e.g. RATE_LIMIT_BUCKET_SIZE.
type SettingFixture struct {
	Key    string      `yaml:"key"`
	Value  interface{} `yaml:"value"`
	Public bool        `yaml:"public"`
}

type UserFixture struct {
	Name     string      `yaml:"name"`
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Role     models.Role `yaml:"role"`
}

type TripFixture struct {
	Traveler    string       `yaml:"traveler"` // email of a fixture user
	Title       string       `yaml:"title"`
	Destination string       `yaml:"destination"`
	StartDate   string       `yaml:"start_date"`
	EndDate     string       `yaml:"end_date"`
	Budget      float64      `yaml:"budget"`
	Preferences string       `yaml:"preferences"`
	Description string       `yaml:"description"`
	Bids        []BidFixture `yaml:"bids"`
}

type BidFixture struct {
	Agent    string  `yaml:"agent"` // email of a fixture user
	Price    float64 `yaml:"price"`
	Services string  `yaml:"services"`
}

const dateLayout = "2006-01-02"

func loadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return parseFixture(raw)
}

func parseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("invalid fixture yaml: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// validate checks cross references so a bad fixture fails before anything is written.
func (f *Fixture) validate() error {
	keys := make(map[string]bool, len(f.Settings))
	for i, st := range f.Settings {
		if strings.TrimSpace(st.Key) == "" || st.Value == nil {
			return fmt.Errorf("setting %d: key and value are required", i)
		}
		if keys[st.Key] {
			return fmt.Errorf("setting %s listed twice", st.Key)
		}
		keys[st.Key] = true
	}

	roles := make(map[string]models.Role, len(f.Users))
	for i := range f.Users {
		u := &f.Users[i]
		u.Email = utils.NormalizeEmail(u.Email)
		if u.Email == "" || u.Password == "" || strings.TrimSpace(u.Name) == "" {
			return fmt.Errorf("user %d: name, email and password are required", i)
		}
		if !u.Role.Valid() {
			return fmt.Errorf("user %s: unknown role %q", u.Email, u.Role)
		}
		if _, dup := roles[u.Email]; dup {
			return fmt.Errorf("user %s listed twice", u.Email)
		}
		roles[u.Email] = u.Role
	}

	for i := range f.Trips {
		t := &f.Trips[i]
		t.Traveler = utils.NormalizeEmail(t.Traveler)
		if roles[t.Traveler] != models.RoleTraveler {
			return fmt.Errorf("trip %q: %s is not a traveler in this fixture", t.Title, t.Traveler)
		}
		if _, _, err := t.dates(); err != nil {
			return err
		}
		for j := range t.Bids {
			b := &t.Bids[j]
			b.Agent = utils.NormalizeEmail(b.Agent)
			if roles[b.Agent] != models.RoleAgent {
				return fmt.Errorf("trip %q: bidder %s is not an agent in this fixture", t.Title, b.Agent)
			}
		}
	}
	return nil
}

func (t *TripFixture) dates() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, t.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("trip %q: invalid start_date: %w", t.Title, err)
	}
	end, err := time.Parse(dateLayout, t.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("trip %q: invalid end_date: %w", t.Title, err)
	}
	return start, end, nil
}
