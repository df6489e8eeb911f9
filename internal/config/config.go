// Package config loads simulation requests from YAML.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lox/vocmax/internal/ashrae"
	"github.com/lox/vocmax/internal/export"
	"github.com/lox/vocmax/internal/irradiance"
	"github.com/lox/vocmax/internal/pverr"
	"github.com/lox/vocmax/internal/pvmodule"
	"github.com/lox/vocmax/internal/simulate"
	"github.com/lox/vocmax/internal/summary"
	"github.com/lox/vocmax/internal/thermal"
)

// Request is the on-disk (YAML) and on-the-wire (JSON) shape of one
// simulation.
type Request struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
	// WeatherFile is a local NSRDB CSV used instead of the nearest indexed
	// site. Relative paths resolve against the config file directory first.
	WeatherFile string `yaml:"weather_file,omitempty" json:"-"`

	// ModuleFile loads the module block from a separate YAML. Fields set in
	// Module override it.
	ModuleFile string         `yaml:"module_file,omitempty" json:"-"`
	Module     ModuleConfig   `yaml:"module" json:"module"`
	Racking    RackingConfig  `yaml:"racking" json:"racking"`
	Thermal    thermal.Params `yaml:"thermal" json:"thermal"`

	SkyModel irradiance.SkyModel `yaml:"sky_model" json:"sky_model"`
	IAMParam float64             `yaml:"iam_b" json:"iam_b"`

	StringDesignVoltage float64 `yaml:"string_design_voltage" json:"string_design_voltage"`
	// SafetyFactorPercent applies to the simulated P99.5 and P100 entries.
	SafetyFactorPercent float64 `yaml:"safety_factor_percent" json:"safety_factor_percent"`
	// UseASHRAE looks up the nearest ASHRAE station for the code entries.
	UseASHRAE bool `yaml:"use_ashrae" json:"use_ashrae"`
	// ASHRAEMaxDistanceKm is the farthest station accepted; beyond it the
	// code entries use the weather data. Zero disables the limit.
	ASHRAEMaxDistanceKm float64 `yaml:"ashrae_max_distance_km" json:"ashrae_max_distance_km"`
	HistogramEdges      int     `yaml:"histogram_edges" json:"histogram_edges"`
}

// ModuleConfig names a catalog module or describes one by hand. Exactly one
// of Name, Simplified and CEC is set.
type ModuleConfig struct {
	Name       string               `yaml:"name,omitempty" json:"name,omitempty"`
	Simplified *pvmodule.Simplified `yaml:"simplified,omitempty" json:"simplified,omitempty"`
	CEC        *pvmodule.CEC        `yaml:"cec,omitempty" json:"cec,omitempty"`
}

// RackingConfig is the flat form of both racking variants. Fields that do
// not apply to the chosen mount are ignored.
type RackingConfig struct {
	Mount string `yaml:"mount" json:"mount"`

	SurfaceTilt    float64 `yaml:"surface_tilt" json:"surface_tilt"`
	SurfaceAzimuth float64 `yaml:"surface_azimuth" json:"surface_azimuth"`

	AxisTilt    float64 `yaml:"axis_tilt" json:"axis_tilt"`
	AxisAzimuth float64 `yaml:"axis_azimuth" json:"axis_azimuth"`
	MaxAngle    float64 `yaml:"max_angle" json:"max_angle"`
	Backtrack   bool    `yaml:"backtrack" json:"backtrack"`
	GCR         float64 `yaml:"gcr" json:"gcr"`

	Albedo                     float64 `yaml:"albedo" json:"albedo"`
	BacksideIrradianceFraction float64 `yaml:"backside_irradiance_fraction" json:"backside_irradiance_fraction"`
}

// Default returns a request with every optional field filled in. Decoding
// onto it keeps the defaults for keys the document leaves out.
func Default() *Request {
	return &Request{
		Racking: RackingConfig{
			Mount:                      string(irradiance.MountFixedTilt),
			SurfaceTilt:                30,
			SurfaceAzimuth:             180,
			MaxAngle:                   90,
			Backtrack:                  true,
			GCR:                        2.0 / 7,
			Albedo:                     0.25,
			BacksideIrradianceFraction: 0.2,
		},
		Thermal:             thermal.Params{Preset: thermal.OpenRackGlassPolymer},
		SkyModel:            irradiance.SkyIsotropic,
		IAMParam:            irradiance.DefaultIAMParam,
		StringDesignVoltage: summary.DefaultStringDesignVoltage,
		SafetyFactorPercent: 3.3,
		UseASHRAE:           true,
		ASHRAEMaxDistanceKm: ashrae.DefaultMaxDistanceKm,
		HistogramEdges:      summary.DefaultVocHistogramEdges,
	}
}

// Load reads, merges and validates a request.
func Load(path string) (*Request, error) {
	r, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// LoadUnchecked loads and merges a request over the defaults, but does not
// validate it.
func LoadUnchecked(path string) (*Request, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := Default()
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if r.WeatherFile != "" {
		r.WeatherFile = resolve(path, r.WeatherFile)
	}
	if r.ModuleFile != "" {
		loaded, err := loadModuleFile(resolve(path, r.ModuleFile))
		if err != nil {
			return nil, err
		}
		r.Module = MergeModule(loaded, r.Module)
	}
	return r, nil
}

// Parse decodes a YAML document held in memory and validates it.
func Parse(raw []byte) (*Request, error) {
	r := Default()
	if err := yaml.Unmarshal(raw, r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// resolve prefers paths relative to the config file, falling back to the
// path as given.
func resolve(configPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	cand := filepath.Join(filepath.Dir(configPath), p)
	if _, err := os.Stat(cand); err == nil {
		return cand
	}
	return p
}

type moduleFileWrapper struct {
	Module ModuleConfig `yaml:"module"`
}

func loadModuleFile(path string) (ModuleConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ModuleConfig{}, err
	}
	var w moduleFileWrapper
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return ModuleConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return w.Module, nil
}

// MergeModule overlays the set fields of override onto base. A variant set
// in override replaces the other variants of base.
func MergeModule(base, override ModuleConfig) ModuleConfig {
	switch {
	case override.Name != "":
		return ModuleConfig{Name: override.Name}
	case override.Simplified != nil:
		return ModuleConfig{Simplified: override.Simplified}
	case override.CEC != nil:
		return ModuleConfig{CEC: override.CEC}
	}
	return base
}

func (r *Request) Validate() error {
	if r == nil {
		return errors.New("request is nil")
	}
	if math.IsNaN(r.Latitude) || r.Latitude < -90 || r.Latitude > 90 {
		return pverr.Configf("latitude", "must be in [-90, 90], got %v", r.Latitude)
	}
	if math.IsNaN(r.Longitude) || r.Longitude < -180 || r.Longitude > 180 {
		return pverr.Configf("longitude", "must be in [-180, 180], got %v", r.Longitude)
	}
	if _, err := r.ModuleParameters(); err != nil {
		return err
	}
	rack, err := r.RackingParameters()
	if err != nil {
		return err
	}
	if err := rack.Validate(); err != nil {
		return err
	}
	if r.Thermal.Preset != thermal.Explicit {
		if _, err := thermal.Lookup(r.Thermal.Preset); err != nil {
			return err
		}
	}
	switch r.SkyModel {
	case irradiance.SkyIsotropic, irradiance.SkyHayDavies:
	default:
		return pverr.Configf("sky_model", "unknown sky model %q", r.SkyModel)
	}
	if math.IsNaN(r.IAMParam) || r.IAMParam < 0 {
		return pverr.Configf("iam_b", "must be non-negative, got %v", r.IAMParam)
	}
	if math.IsNaN(r.ASHRAEMaxDistanceKm) || r.ASHRAEMaxDistanceKm < 0 {
		return pverr.Configf("ashrae_max_distance_km", "must be non-negative, got %v", r.ASHRAEMaxDistanceKm)
	}
	if r.HistogramEdges < 2 {
		return pverr.Configf("histogram_edges", "need at least 2, got %d", r.HistogramEdges)
	}
	return r.SummaryOptions(nil).Validate()
}

// ModuleParameters resolves the module block against the built-in catalog.
func (r *Request) ModuleParameters() (pvmodule.Parameters, error) {
	m := r.Module
	set := 0
	for _, ok := range []bool{m.Name != "", m.Simplified != nil, m.CEC != nil} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return nil, pverr.Configf("module", "set exactly one of name, simplified or cec")
	}

	var p pvmodule.Parameters
	switch {
	case m.Simplified != nil:
		p = *m.Simplified
	case m.CEC != nil:
		p = *m.CEC
	default:
		cat, err := pvmodule.DefaultCatalog()
		if err != nil {
			return nil, fmt.Errorf("load module catalog: %w", err)
		}
		cec, ok := cat.Lookup(m.Name)
		if !ok {
			return nil, pverr.Configf("module", "unknown module %q", m.Name)
		}
		p = cec
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// RackingParameters builds the racking variant named by Mount.
func (r *Request) RackingParameters() (irradiance.Racking, error) {
	c := r.Racking
	mount, err := irradiance.ParseMount(c.Mount)
	if err != nil {
		return nil, err
	}
	if mount == irradiance.MountSingleAxis {
		return irradiance.SingleAxis{
			AxisTilt:                   c.AxisTilt,
			AxisAzimuth:                c.AxisAzimuth,
			MaxAngle:                   c.MaxAngle,
			Backtrack:                  c.Backtrack,
			GCR:                        c.GCR,
			Albedo:                     c.Albedo,
			BacksideIrradianceFraction: c.BacksideIrradianceFraction,
		}, nil
	}
	return irradiance.FixedTilt{
		SurfaceTilt:                c.SurfaceTilt,
		SurfaceAzimuth:             c.SurfaceAzimuth,
		Albedo:                     c.Albedo,
		BacksideIrradianceFraction: c.BacksideIrradianceFraction,
	}, nil
}

// EngineOptions returns the optics settings for simulate.New.
func (r *Request) EngineOptions() []simulate.Option {
	return []simulate.Option{
		simulate.WithSkyModel(r.SkyModel),
		simulate.WithIAMParam(r.IAMParam),
	}
}

// SummaryOptions converts the design inputs. station may be nil.
func (r *Request) SummaryOptions(station *ashrae.Station) summary.Options {
	return summary.Options{
		StringDesignVoltage: r.StringDesignVoltage,
		SafetyFactor:        r.SafetyFactorPercent / 100,
		Station:             station,
		HistogramEdges:      r.HistogramEdges,
	}
}

// Fields lists the inputs for a summary header.
func (r *Request) Fields() []export.Field {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	out := []export.Field{
		{Name: "latitude", Value: f(r.Latitude)},
		{Name: "longitude", Value: f(r.Longitude)},
	}
	switch {
	case r.Module.Name != "":
		out = append(out, export.Field{Name: "module", Value: r.Module.Name})
	case r.Module.Simplified != nil:
		s := r.Module.Simplified
		out = append(out,
			export.Field{Name: "module", Value: s.Name},
			export.Field{Name: "module_model", Value: "simplified"},
			export.Field{Name: "Voco", Value: f(s.Voco)},
			export.Field{Name: "Bvoco", Value: f(s.Bvoco)},
			export.Field{Name: "Mbvoc", Value: f(s.Mbvoc)},
			export.Field{Name: "n_diode", Value: f(s.NDiode)},
			export.Field{Name: "cells_in_series", Value: strconv.Itoa(s.CellsInSeries)},
		)
	case r.Module.CEC != nil:
		out = append(out,
			export.Field{Name: "module", Value: r.Module.CEC.Name},
			export.Field{Name: "module_model", Value: "cec"},
		)
	}
	out = append(out, export.Field{Name: "racking_type", Value: r.Racking.Mount})
	if mount, err := irradiance.ParseMount(r.Racking.Mount); err == nil && mount == irradiance.MountSingleAxis {
		out = append(out,
			export.Field{Name: "axis_tilt", Value: f(r.Racking.AxisTilt)},
			export.Field{Name: "axis_azimuth", Value: f(r.Racking.AxisAzimuth)},
			export.Field{Name: "max_angle", Value: f(r.Racking.MaxAngle)},
			export.Field{Name: "backtrack", Value: strconv.FormatBool(r.Racking.Backtrack)},
			export.Field{Name: "gcr", Value: f(r.Racking.GCR)},
		)
	} else {
		out = append(out,
			export.Field{Name: "surface_tilt", Value: f(r.Racking.SurfaceTilt)},
			export.Field{Name: "surface_azimuth", Value: f(r.Racking.SurfaceAzimuth)},
		)
	}
	out = append(out,
		export.Field{Name: "albedo", Value: f(r.Racking.Albedo)},
		export.Field{Name: "thermal_model", Value: string(r.Thermal.Preset)},
		export.Field{Name: "open_circuit_rise", Value: strconv.FormatBool(r.Thermal.OpenCircuitRise)},
		export.Field{Name: "sky_model", Value: string(r.SkyModel)},
		export.Field{Name: "string_design_voltage", Value: f(r.StringDesignVoltage)},
		export.Field{Name: "safety_factor_percent", Value: f(r.SafetyFactorPercent)},
	)
	return out
}
