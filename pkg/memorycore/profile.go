// Copyright 2025 Kadir Pekel
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

package memorycore

// Profile is the adaptive optimizer profile selected at startup from
// the validator's declared context window (spec.md 4.3's table).
type Profile struct {
	Name          string
	MaxOperations int
	MaxTokensPct  float64
	CkptEveryOps  int
	CkptAtUsage   float64
}

var profiles = []struct {
	upperBound int // tokens, inclusive; 0 means "no upper bound"
	profile    Profile
}{
	{4_000, Profile{Name: "ultra-aggressive", MaxOperations: 10, MaxTokensPct: 0.05, CkptEveryOps: 20, CkptAtUsage: 0.70}},
	{32_000, Profile{Name: "aggressive", MaxOperations: 20, MaxTokensPct: 0.07, CkptEveryOps: 50, CkptAtUsage: 0.70}},
	{100_000, Profile{Name: "balanced-aggressive", MaxOperations: 40, MaxTokensPct: 0.08, CkptEveryOps: 80, CkptAtUsage: 0.75}},
	{250_000, Profile{Name: "balanced", MaxOperations: 75, MaxTokensPct: 0.10, CkptEveryOps: 100, CkptAtUsage: 0.80}},
	{0, Profile{Name: "minimal", MaxOperations: 100, MaxTokensPct: 0.10, CkptEveryOps: 200, CkptAtUsage: 0.85}},
}

// SelectProfile picks the adaptive optimizer profile for a given
// context window size, per spec.md 4.3's window table.
func SelectProfile(contextWindow int) Profile {
	for _, p := range profiles {
		if p.upperBound == 0 || contextWindow <= p.upperBound {
			return p.profile
		}
	}
	return profiles[len(profiles)-1].profile
}
