package layering

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergeFromFixture(t *testing.T) {
	fx := loadLayeringFixture(t, "layering_merge.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			layers := make([]map[string]string, len(tc.Layers))
			for i := range tc.Layers {
				layers[i] = tc.Layers[i].Snapshot
			}

			got, winners := MergeWithWinners(layers...)
			if !reflect.DeepEqual(tc.Expect, got) {
				t.Errorf("merged snapshot mismatch:\nwant: %#v\n got: %#v", tc.Expect, got)
			}
			for key, scope := range tc.Winners {
				idx, ok := winners[key]
				if !ok || tc.Layers[idx].Scope != scope {
					t.Errorf("expected %s to win %q, got layer %d", scope, key, idx)
				}
			}
		})
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	strong := map[string]string{"theme": `"Light"`}
	weak := map[string]string{"lang": `"en"`}

	merged := Merge(strong, weak)
	merged["theme"] = `"Dark"`
	merged["lang"] = `"fr"`

	if strong["theme"] != `"Light"` || weak["lang"] != `"en"` {
		t.Fatalf("merge result aliases its inputs: strong=%v weak=%v", strong, weak)
	}
}

func TestMergeZeroInput(t *testing.T) {
	got := Merge()
	if got == nil || len(got) != 0 {
		t.Fatalf("expected an empty map, got %#v", got)
	}
}

func TestShadowed(t *testing.T) {
	user := map[string]string{"theme": `"Light"`}
	team := map[string]string{"theme": `"Dark"`, "lang": `"de"`}
	system := map[string]string{"theme": `"Dark"`, "lang": `"en"`, "notify": "true"}

	if got := Shadowed(2, user, team, system); !reflect.DeepEqual(got, []string{"lang", "theme"}) {
		t.Fatalf("unexpected shadowed system keys %v", got)
	}
	if got := Shadowed(1, user, team, system); !reflect.DeepEqual(got, []string{"theme"}) {
		t.Fatalf("unexpected shadowed team keys %v", got)
	}
	if got := Shadowed(0, user, team, system); got != nil {
		t.Fatalf("the strongest layer is never shadowed, got %v", got)
	}
	if got := Shadowed(5, user); got != nil {
		t.Fatalf("out of range index should report nothing, got %v", got)
	}
}

func TestClone(t *testing.T) {
	origin := map[string]string{"a": "1"}
	cloned := Clone(origin)
	cloned["a"] = "2"
	if origin["a"] != "1" {
		t.Fatalf("Clone should detach maps")
	}
	if Clone(nil) != nil {
		t.Fatalf("Clone(nil) should stay nil")
	}
}

type layeringFixture struct {
	Description string                `json:"description"`
	Cases       []layeringFixtureCase `json:"cases"`
}

type layeringFixtureCase struct {
	Name    string                 `json:"name"`
	Layers  []layeringFixtureLayer `json:"layers"`
	Expect  map[string]string      `json:"expect"`
	Winners map[string]string      `json:"winners"`
}

type layeringFixtureLayer struct {
	Scope    string            `json:"scope"`
	Snapshot map[string]string `json:"snapshot"`
}

func loadLayeringFixture(t *testing.T, name string) layeringFixture {
	t.Helper()
	path := filepath.Join("testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read layering fixture %q: %v", name, err)
	}
	var fx layeringFixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal layering fixture %q: %v", name, err)
	}
	return fx
}
