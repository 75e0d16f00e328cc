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

// Package htp implements a permissive, bidirectional HTTP/1.x message
// parser for passive inspection of mirrored traffic.
//
// Unlike net/http, the input here is not a request this process originated
// or terminated — it is a byte stream captured off the wire at some
// arbitrary point, possibly malformed, possibly deliberately evasive. The
// parser never generates HTTP; it only reconstructs observed bytes into a
// structured Transaction and surfaces every tolerated syntax anomaly as a
// Flags bit or a log event.
package htp

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/encoding/charmap"

	"github.com/packetd/htpcore/confengine"
	"github.com/packetd/htpcore/htplog"
	"github.com/packetd/htpcore/logger"
)

// CompressionOptions bounds the resource usage of the external
// decompression collaborator.
//
// The core never decompresses anything itself; it only hands bytes to a
// caller-supplied Decoder. These fields are passed through to that
// implementation's resource policy and are not enforced by the core.
type CompressionOptions struct {
	BombLimit    int64
	BombRatio    float64
	TimeLimit    time.Duration
	LZMAMemLimit int64
	LayerLimit   int
}

// DecoderConfig controls percent- and UTF-8-decoding behavior for URI and
// parameter bytes.
type DecoderConfig struct {
	UEncodingDecode          bool
	URLEncodingInvalid       URLEncodingInvalidAction
	BackslashConvertSlashes  bool
	PathSeparatorsDecode     bool
	PathSeparatorsCompress   bool
	PlusSpaceDecode          bool
	NULRawTerminates         bool
	NULEncodedTerminates     bool
	ConvertLowercase         bool
	BestfitMap               *charmap.Charmap
	UTF8ConvertBestfit       bool
	PathUnwantedStatusCode   int
	URLenUnwantedStatusCode  int
}

// DefaultDecoderConfig returns decoder defaults close to the GENERIC
// personality.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		UEncodingDecode:         false,
		URLEncodingInvalid:      URLProcessInvalid,
		BackslashConvertSlashes: false,
		PathSeparatorsDecode:    false,
		PathSeparatorsCompress:  false,
		PlusSpaceDecode:         true,
		NULRawTerminates:        false,
		NULEncodedTerminates:    false,
		ConvertLowercase:        false,
		BestfitMap:              charmap.Windows1252,
		UTF8ConvertBestfit:      false,
		PathUnwantedStatusCode:  400,
		URLenUnwantedStatusCode: 400,
	}
}

// Config is the parsing core's read-only configuration, deep-copied when a
// Connection is created.
//
// Configuration is read-only during parsing: mutating Config fields after
// a Connection has been created never affects that Connection.
type Config struct {
	ServerPersonality Personality
	FieldLimit        int

	Compression CompressionOptions
	DecoderCfg  DecoderConfig

	TxAutoDestroy            bool
	ParseURLEncoded          bool
	ParseMultipart           bool
	RequestDecompression     bool
	ExtractRequestFiles      bool
	ExtractRequestFilesLimit int
	TmpDir                   string

	HeaderRepetitionLimit int

	Sink htplog.Sink
}

const defaultFieldLimit = 64 * 1024

// DefaultConfig returns the default configuration under the GENERIC
// personality.
func DefaultConfig() *Config {
	cfg := &Config{
		ServerPersonality:        PersonalityGeneric,
		FieldLimit:               defaultFieldLimit,
		Compression:              CompressionOptions{BombLimit: 1 << 30, BombRatio: 2048, TimeLimit: 30 * time.Second, LayerLimit: 2},
		DecoderCfg:               DefaultDecoderConfig(),
		TxAutoDestroy:            false,
		ParseURLEncoded:          true,
		ParseMultipart:           true,
		RequestDecompression:     false,
		ExtractRequestFiles:      false,
		ExtractRequestFilesLimit: 16,
		TmpDir:                   "",
		HeaderRepetitionLimit:    64,
		Sink:                     htplog.NopSink{},
	}
	cfg.ServerPersonality.applyDefaults(cfg)
	return cfg
}

// WithPersonality switches the personality and reapplies its default
// tolerance policy.
func (c *Config) WithPersonality(p Personality) *Config {
	c.ServerPersonality = p
	p.applyDefaults(c)
	return c
}

// WithLogger replaces Sink with the zap/lumberjack-backed implementation
// from the logger package, configured by opt. DefaultConfig leaves Sink as
// htplog.NopSink{}; callers that want diagnostic output call this (or set
// Sink directly to their own htplog.Sink) rather than relying on a default.
func (c *Config) WithLogger(opt logger.Options) *Config {
	c.Sink = logger.NewSink(opt)
	return c
}

// Clone deep-copies the config so a Connection can freeze a snapshot
// unaffected by later mutation.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// FromMap decodes a generic map (typically sourced from YAML/JSON) onto
// Config using mapstructure. Fields absent from m keep their prior value,
// making this an incremental override on top of DefaultConfig().
func (c *Config) FromMap(m map[string]any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		WeaklyTypedInput: true,
		TagName:          "htp",
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}

// LoadConfigFile reads a YAML configuration file through confengine
// (go-ucfg) and layers it on top of DefaultConfig() via FromMap.
func LoadConfigFile(path string) (*Config, error) {
	ce, err := confengine.LoadConfigPath(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := ce.Unpack(&m); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := cfg.FromMap(m); err != nil {
		return nil, err
	}
	return cfg, nil
}
