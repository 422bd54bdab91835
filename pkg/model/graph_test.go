package model

import (
	"reflect"
	"testing"

	json "github.com/goccy/go-json"
)

func TestVersionUnmarshalAcceptsNumbersAndStrings(t *testing.T) {
	var got struct {
		Versions []Version `json:"versions"`
	}
	if err := json.Unmarshal([]byte(`{"versions":[1,"2",3.5,null]}`), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []Version{"1", "2", "3.5", ""}
	if !reflect.DeepEqual(got.Versions, want) {
		t.Errorf("versions = %v, want %v", got.Versions, want)
	}
}

func TestVersionUnmarshalRejectsGarbage(t *testing.T) {
	var v Version
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("expected error for object version")
	}
}

func TestElementsRoles(t *testing.T) {
	elems := Elements{
		Nodes: []Node{{ID: "n1", Role: "B"}, {ID: "n2", Role: "A"}, {ID: "n3"}},
		Edges: []Edge{{ID: "e1", Source: "n1", Target: "n2", SourceRole: "B", TargetRole: "C"}},
	}
	got := elems.Roles()
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Roles() = %v, want %v", got, want)
	}
}

func TestElementsVersionsFirstSeenOrder(t *testing.T) {
	elems := Elements{
		Nodes: []Node{{ID: "a", Version: "2"}, {ID: "b", Version: "1"}, {ID: "c", Version: "2"}},
		Edges: []Edge{{ID: "e", Version: "3", Source: "a", Target: "b"}},
	}
	want := []Version{"2", "1", "3"}
	if got := elems.Versions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Versions() = %v, want %v", got, want)
	}
}

func TestElementsValidate(t *testing.T) {
	tests := []struct {
		name    string
		elems   Elements
		wantErr bool
	}{
		{"empty", Elements{}, false},
		{"ok", Elements{Nodes: []Node{{ID: "a"}}, Edges: []Edge{{ID: "e", Source: "a", Target: "a"}}}, false},
		{"node without id", Elements{Nodes: []Node{{ID: " "}}}, true},
		{"self parent", Elements{Nodes: []Node{{ID: "a", Parent: "a"}}}, true},
		{"dangling edge", Elements{Edges: []Edge{{ID: "e", Source: "a"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.elems.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
