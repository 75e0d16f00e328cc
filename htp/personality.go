// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package htp

// Personality is a named preset of server-emulation tolerance knobs.
type Personality int

const (
	PersonalityMinimal Personality = iota
	PersonalityGeneric
	PersonalityIDS
	PersonalityIIS40
	PersonalityIIS50
	PersonalityIIS51
	PersonalityIIS60
	PersonalityIIS70
	PersonalityIIS75
	PersonalityApache2
)

func (p Personality) String() string {
	switch p {
	case PersonalityMinimal:
		return "MINIMAL"
	case PersonalityGeneric:
		return "GENERIC"
	case PersonalityIDS:
		return "IDS"
	case PersonalityIIS40:
		return "IIS_4_0"
	case PersonalityIIS50:
		return "IIS_5_0"
	case PersonalityIIS51:
		return "IIS_5_1"
	case PersonalityIIS60:
		return "IIS_6_0"
	case PersonalityIIS70:
		return "IIS_7_0"
	case PersonalityIIS75:
		return "IIS_7_5"
	case PersonalityApache2:
		return "APACHE_2"
	default:
		return "UNKNOWN"
	}
}

// applyDefaults adjusts decoder and tolerance defaults for the personality.
//
// The IIS family treats backslash as a path separator and compresses
// repeated separators by default; Apache-2 and IDS/GENERIC stay closer to
// RFC behavior. These presets are only a starting point — cfg.DecoderCfg
// can still be overridden explicitly afterward.
func (p Personality) applyDefaults(cfg *Config) {
	switch p {
	case PersonalityIIS40, PersonalityIIS50, PersonalityIIS51, PersonalityIIS60, PersonalityIIS70, PersonalityIIS75:
		cfg.DecoderCfg.BackslashConvertSlashes = true
		cfg.DecoderCfg.PathSeparatorsDecode = true
		cfg.DecoderCfg.PathSeparatorsCompress = true
		cfg.DecoderCfg.ConvertLowercase = true
		cfg.DecoderCfg.UEncodingDecode = true

	case PersonalityApache2:
		cfg.DecoderCfg.BackslashConvertSlashes = false
		cfg.DecoderCfg.PathSeparatorsDecode = false
		cfg.DecoderCfg.UEncodingDecode = false

	case PersonalityIDS, PersonalityGeneric:
		cfg.DecoderCfg.UEncodingDecode = true

	case PersonalityMinimal:
		// No extra tolerance; stays close to minimal RFC behavior.
	}
}
