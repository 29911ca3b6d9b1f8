package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"gitlab.com/NebulousLabs/errors"
)

type (
	// recordingAdmin records every request it receives and fails the request
	// whose description equals failOn.
	recordingAdmin struct {
		calls   []string
		current string
		users   map[string]User
		failOn  string
	}
)

var errRecordingAdmin = errors.New("recordingAdmin failure")

func newRecordingAdmin() *recordingAdmin {
	return &recordingAdmin{users: map[string]User{}}
}

func (a *recordingAdmin) record(call string) error {
	a.calls = append(a.calls, call)
	if call == a.failOn {
		return errRecordingAdmin
	}
	return nil
}

func (a *recordingAdmin) CreateUser(_ context.Context, db string, u User) error {
	if err := a.record("createUser " + db + "." + u.Name); err != nil {
		return err
	}
	a.users[db+"."+u.Name] = u
	return nil
}

func (a *recordingAdmin) UseDatabase(name string) error {
	if err := a.record("use " + name); err != nil {
		return err
	}
	a.current = name
	return nil
}

func (a *recordingAdmin) CreateCollection(_ context.Context, name string) error {
	return a.record("createCollection " + a.current + "." + name)
}

func (a *recordingAdmin) CreateIndex(_ context.Context, coll string, idx Index) (string, error) {
	return idx.Name, a.record("createIndex " + a.current + "." + coll + "." + idx.Name)
}

// testConfig returns a config which doesn't use any of the defaults.
func testConfig() Config {
	return Config{
		AppUser:      "app",
		AppPassword:  "secret",
		Database:     "appdb",
		UserDatabase: "appdb",
	}
}

// TestNewPlan ensures the plan creates the user first, then switches the
// database and then creates each collection followed by its indexes.
func TestNewPlan(t *testing.T) {
	plan := NewPlan(testConfig(), Schema)
	if len(plan) != 19 {
		t.Fatalf("Expected 19 steps, got %d", len(plan))
	}
	s := plan[0]
	if s.Kind != StepCreateUser || s.Database != "appdb" {
		t.Fatalf("Unexpected first step %+v", s)
	}
	if s.User.Name != "app" || s.User.Password != "secret" {
		t.Fatalf("Unexpected user %+v", s.User)
	}
	if len(s.User.Roles) != 1 || s.User.Roles[0] != (Role{Role: "readWrite", DB: "appdb"}) {
		t.Fatalf("Unexpected roles %+v", s.User.Roles)
	}
	if plan[1].Kind != StepUseDatabase || plan[1].Database != "appdb" {
		t.Fatalf("Unexpected second step %+v", plan[1])
	}

	var got []string
	for _, s := range plan[2:] {
		switch s.Kind {
		case StepCreateCollection:
			got = append(got, s.Collection)
		case StepCreateIndex:
			got = append(got, s.Collection+"."+describe(*s.Index))
		default:
			t.Fatalf("Unexpected step %+v", s)
		}
	}
	expected := []string{
		"characters",
		"characters.{userId:1}",
		"characters.{name:1} unique",
		"characters.{class:1}",
		"characters.{level:1}",
		"cards",
		"cards.{name:1} unique",
		"cards.{type:1}",
		"cards.{rarity:1}",
		"events",
		"events.{type:1}",
		"events.{createdAt:1}",
		"logs",
		"logs.{timestamp:1}",
		"logs.{type:1}",
		"logs.{userId:1}",
		"logs.{timestamp:1} ttl=2592000s",
	}
	if strings.Join(got, "\n") != strings.Join(expected, "\n") {
		t.Fatalf("Unexpected plan.\nExpected:\n%s\nGot:\n%s", strings.Join(expected, "\n"), strings.Join(got, "\n"))
	}
}

// TestNewPlanUserDatabase ensures the user can be stored in a database other
// than the one it is granted access to.
func TestNewPlanUserDatabase(t *testing.T) {
	cfg := testConfig()
	cfg.UserDatabase = "admin"
	plan := NewPlan(cfg, Schema)
	if plan[0].Database != "admin" {
		t.Fatalf("Expected user to be created in '%s', got '%s'", "admin", plan[0].Database)
	}
	if plan[0].User.Roles[0].DB != "appdb" {
		t.Fatalf("Expected role on '%s', got '%s'", "appdb", plan[0].User.Roles[0].DB)
	}
	if plan[1].Database != "appdb" {
		t.Fatalf("Expected to switch to '%s', got '%s'", "appdb", plan[1].Database)
	}
}

// TestApply ensures Apply issues all requests in order and that collections
// land in the selected database.
func TestApply(t *testing.T) {
	admin := newRecordingAdmin()
	err := Apply(context.Background(), admin, NewPlan(testConfig(), Schema), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(admin.calls) != 19 {
		t.Fatalf("Expected 19 calls, got %d: %v", len(admin.calls), admin.calls)
	}
	if admin.calls[0] != "createUser appdb.app" || admin.calls[1] != "use appdb" {
		t.Fatalf("Unexpected first calls: %v", admin.calls[:2])
	}
	for _, c := range admin.calls[2:] {
		if !strings.Contains(c, " appdb.") {
			t.Fatalf("Expected call to target 'appdb', got '%s'", c)
		}
	}
	if u, ok := admin.users["appdb.app"]; !ok || u.Password != "secret" {
		t.Fatalf("Expected user to be created with the configured password, got %+v", admin.users)
	}
}

// TestApplyAbortsOnFailure ensures Apply stops at the first failing request.
func TestApplyAbortsOnFailure(t *testing.T) {
	tests := []struct {
		failOn    string
		calls     int
		stepLabel string
	}{
		{failOn: "createUser appdb.app", calls: 1, stepLabel: "step 1/19"},
		{failOn: "use appdb", calls: 2, stepLabel: "step 2/19"},
		{failOn: "createCollection appdb.cards", calls: 8, stepLabel: "step 8/19"},
		{failOn: "createIndex appdb.logs.timestamp_ttl", calls: 19, stepLabel: "step 19/19"},
	}
	for _, tt := range tests {
		admin := newRecordingAdmin()
		admin.failOn = tt.failOn
		err := Apply(context.Background(), admin, NewPlan(testConfig(), Schema), nil)
		if err == nil || !errors.Contains(err, errRecordingAdmin) {
			t.Fatalf("%s: expected error '%v', got '%v'", tt.failOn, errRecordingAdmin, err)
		}
		if !strings.Contains(err.Error(), tt.stepLabel) {
			t.Fatalf("%s: expected error to mention '%s', got '%v'", tt.failOn, tt.stepLabel, err)
		}
		if len(admin.calls) != tt.calls {
			t.Fatalf("%s: expected %d calls, got %d", tt.failOn, tt.calls, len(admin.calls))
		}
		if admin.calls[len(admin.calls)-1] != tt.failOn {
			t.Fatalf("%s: expected the failing call to be the last one, got %v", tt.failOn, admin.calls)
		}
	}
}

// TestApplyUnknownStep ensures Apply refuses steps it doesn't understand.
func TestApplyUnknownStep(t *testing.T) {
	admin := newRecordingAdmin()
	plan := []Step{{Kind: StepKind("drop_database"), Database: "appdb"}}
	err := Apply(context.Background(), admin, plan, nil)
	if err == nil || !errors.Contains(err, ErrUnknownStep) {
		t.Fatalf("Expected error '%v', got '%v'", ErrUnknownStep, err)
	}
	if len(admin.calls) != 0 {
		t.Fatalf("Expected no calls, got %v", admin.calls)
	}
}

// TestStepString ensures every step kind has a readable description.
func TestStepString(t *testing.T) {
	plan := NewPlan(testConfig(), Schema)
	for i, s := range plan {
		str := s.String()
		if str == "" || str == string(s.Kind) {
			t.Fatalf("Step %d has no description: %+v", i, s)
		}
		if strings.Contains(str, "secret") {
			t.Fatalf("Step %d leaks the password: %s", i, str)
		}
	}
	last := plan[len(plan)-1].String()
	if last != fmt.Sprintf("create index '%s' on '%s'", "timestamp_ttl", "logs") {
		t.Fatalf("Unexpected description '%s'", last)
	}
}
