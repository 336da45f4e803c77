// Copyright 2025 Martial & Co
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"testing"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	tests := []struct {
		name    string
		key     string
		item    testItem
		wantErr bool
	}{
		{
			name: "register valid item",
			key:  "item-1",
			item: testItem{ID: "item-1", Name: "First"},
		},
		{
			name:    "register with empty name",
			key:     "",
			item:    testItem{Name: "Nameless"},
			wantErr: true,
		},
		{
			name:    "register duplicate",
			key:     "item-1",
			item:    testItem{ID: "item-1", Name: "Second"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.key, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_GetRemoveCount(t *testing.T) {
	reg := NewBaseRegistry[testItem]()
	if err := reg.Register("a", testItem{ID: "a"}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := reg.Register("b", testItem{ID: "b"}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	if got, ok := reg.Get("a"); !ok || got.ID != "a" {
		t.Errorf("Get(a) = %v, %v; want item a, true", got, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Error("Get(missing) should not be found")
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}

	names := reg.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names() = %v, want [a b]", names)
	}

	if err := reg.Remove("a"); err != nil {
		t.Errorf("Remove(a) failed: %v", err)
	}
	if err := reg.Remove("a"); err == nil {
		t.Error("Remove(a) twice should fail")
	}

	reg.Clear()
	if reg.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", reg.Count())
	}
}
