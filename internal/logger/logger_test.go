package logger

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		env     string
		wantErr bool
	}{
		{"production", "info", "production", false},
		{"development", "debug", "development", false},
		{"default level", "", "testing", false},
		{"bad level", "loud", "production", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New("notebook-server", tt.level, tt.env)
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if log == nil {
				t.Fatal("expected a logger")
			}
		})
	}
}
