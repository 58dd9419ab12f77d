package registry

import "testing"

func TestNew_LoadsEmbeddedSchemas(t *testing.T) {
	reg, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	names := reg.ListCommands()
	for _, want := range []string{"takeoff", "land", "rtl", "goto", "yaw", "wait"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected schema %q to be loaded, got %v", want, names)
		}
	}
}

func TestValidateParams_TakeoffAltitudeBounds(t *testing.T) {
	reg, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// altitude has a default and is not required, so an empty params map
	// must validate.
	if errs := reg.ValidateParams("takeoff", map[string]any{}); len(errs) != 0 {
		t.Errorf("expected omitted altitude to pass (default applies), got %v", errs)
	}

	if errs := reg.ValidateParams("takeoff", map[string]any{"altitude": 5.0}); len(errs) != 0 {
		t.Errorf("expected a valid altitude to pass, got %v", errs)
	}

	if errs := reg.ValidateParams("takeoff", map[string]any{"altitude": 100.0}); len(errs) == 0 {
		t.Error("expected an altitude above the maximum to fail validation")
	}
}

func TestValidateParams_UnknownCommandAlwaysPasses(t *testing.T) {
	reg, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if errs := reg.ValidateParams("does_not_exist", map[string]any{"anything": true}); len(errs) != 0 {
		t.Errorf("a command with no registered schema should always validate, got %v", errs)
	}
}

func TestValidateParams_GotoSpeedAndAcceptanceRadiusBounds(t *testing.T) {
	reg, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		name    string
		params  map[string]any
		wantErr bool
	}{
		{"speed zero rejected", map[string]any{"latitude": 1.0, "longitude": 2.0, "speed": 0.0}, true},
		{"speed above max rejected", map[string]any{"latitude": 1.0, "longitude": 2.0, "speed": 20.1}, true},
		{"speed at max accepted", map[string]any{"latitude": 1.0, "longitude": 2.0, "speed": 20.0}, false},
		{"acceptance_radius zero rejected", map[string]any{"latitude": 1.0, "longitude": 2.0, "acceptance_radius": 0.0}, true},
		{"acceptance_radius above max rejected", map[string]any{"latitude": 1.0, "longitude": 2.0, "acceptance_radius": 50.1}, true},
		{"acceptance_radius at max accepted", map[string]any{"latitude": 1.0, "longitude": 2.0, "acceptance_radius": 50.0}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := reg.ValidateParams("goto", tc.params)
			if tc.wantErr && len(errs) == 0 {
				t.Errorf("expected validation errors for %v, got none", tc.params)
			}
			if !tc.wantErr && len(errs) != 0 {
				t.Errorf("expected no validation errors for %v, got %v", tc.params, errs)
			}
		})
	}
}

func TestValidateParams_WaitRejectsNegativeDuration(t *testing.T) {
	reg, err := New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if errs := reg.ValidateParams("wait", map[string]any{"duration": -1.0}); len(errs) == 0 {
		t.Error("expected negative wait duration to fail validation")
	}
}

func TestDescribe_ReportsImplementationAndSchemaFlags(t *testing.T) {
	reg, err := New(map[string]Handler{"takeoff": nil})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var takeoff *CommandInfo
	for _, info := range reg.Describe() {
		info := info
		if info.Name == "takeoff" {
			takeoff = &info
		}
	}
	if takeoff == nil {
		t.Fatal("expected takeoff in catalog")
	}
	if !takeoff.HasImplementation || !takeoff.HasSchema || !takeoff.HasValidation {
		t.Errorf("expected takeoff to report implementation, schema and validation, got %+v", takeoff)
	}
	if len(takeoff.Parameters) == 0 {
		t.Error("expected takeoff to list its altitude parameter")
	}
}
