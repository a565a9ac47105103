package scrape

import (
	"testing"

	"leadhunt-engine/internal/config"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		cfg     config.Source
		want    string
		wantErr bool
	}{
		{config.Source{Type: "file", Path: "dump.json"}, "file", false},
		{config.Source{Type: "file"}, "", true},
		{config.Source{Type: "html", HTML: config.HTMLSource{URLTemplate: "https://x/?q={query}"}}, "html", false},
		{config.Source{Type: "mail"}, "mail", false},
		{config.Source{Type: "browser"}, "", true},
	}
	for _, tt := range tests {
		src, err := NewSource(tt.cfg, nil)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%+v: err = %v", tt.cfg, err)
		}
		if err == nil && src.Name() != tt.want {
			t.Fatalf("%+v: name = %q, want %q", tt.cfg, src.Name(), tt.want)
		}
	}
}

func TestNewSourcesWrapsExtras(t *testing.T) {
	single, err := NewSources(config.Source{Type: "file", Path: "a.json"}, nil, nil)
	if err != nil || single.Name() != "file" {
		t.Fatalf("single = %v, %v", single, err)
	}
	multi, err := NewSources(config.Source{Type: "file", Path: "a.json"}, []config.Source{{Type: "mail"}}, nil)
	if err != nil || multi.Name() != "multi" {
		t.Fatalf("multi = %v, %v", multi, err)
	}
	if _, err := NewSources(config.Source{Type: "file", Path: "a.json"}, []config.Source{{Type: "ftp"}}, nil); err == nil {
		t.Fatal("expected error for bad extra source")
	}
}
