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

import (
	"github.com/pkoukk/tiktoken-go"
)

// Estimator counts tokens in a string. The tiktoken-backed estimator is
// exact for the models it knows about; Estimate falls back to the
// chars/4 approximation with a +10% safety margin otherwise, matching
// spec.md 4.3.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator tries to load a tiktoken encoding for encodingName (e.g.
// "cl100k_base"). When the encoding cannot be loaded (offline, unknown
// name), Estimate transparently falls back to the approximation.
func NewEstimator(encodingName string) *Estimator {
	if encodingName == "" {
		encodingName = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

func (e *Estimator) Estimate(text string) int {
	if e != nil && e.enc != nil {
		return len(e.enc.Encode(text, nil, nil))
	}
	return approxTokens(text)
}

// approxTokens is the chars/4 approximation with a +10% safety margin.
func approxTokens(text string) int {
	base := float64(len(text)) / 4.0
	return int(base*1.10) + 1
}
