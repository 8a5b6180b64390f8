package tenant

import (
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
)

func TestIntConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  datatypes.JSONMap
		want int
	}{
		{"missing key", datatypes.JSONMap{}, 5},
		{"nil value", datatypes.JSONMap{"due_day": nil}, 5},
		{"in range", datatypes.JSONMap{"due_day": float64(12)}, 12},
		{"below range clamps", datatypes.JSONMap{"due_day": float64(0)}, 1},
		{"above range clamps", datatypes.JSONMap{"due_day": float64(29)}, 28},
		{"negative clamps", datatypes.JSONMap{"due_day": float64(-4)}, 1},
		{"int value", datatypes.JSONMap{"due_day": 7}, 7},
		{"json number", datatypes.JSONMap{"due_day": json.Number("9")}, 9},
		{"numeric string", datatypes.JSONMap{"due_day": " 15 "}, 15},
		{"garbage string defaults", datatypes.JSONMap{"due_day": "abc"}, 5},
		{"bool defaults", datatypes.JSONMap{"due_day": true}, 5},
		{"map defaults", datatypes.JSONMap{"due_day": map[string]any{"x": 1}}, 5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := AutomationRule{Config: tc.cfg}
			if got := r.IntConfig("due_day", 5, 1, 28); got != tc.want {
				t.Fatalf("IntConfig = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(100, 1, 72); got != 72 {
		t.Fatalf("clampInt(100) = %d", got)
	}
	if got := clampInt(0, 1, 72); got != 1 {
		t.Fatalf("clampInt(0) = %d", got)
	}
	if got := clampInt(24, 1, 72); got != 24 {
		t.Fatalf("clampInt(24) = %d", got)
	}
}
