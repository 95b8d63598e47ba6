package codec

import (
	"fmt"

	"github.com/rs/zerolog"

	"encodec-converter/internal/domain"
)

// Binding pairs a profile with its engine or the reason it has none.
type Binding struct {
	Profile Profile
	Engine  Engine
	InitErr error
}

// Ready reports whether the binding carries a usable engine.
func (b Binding) Ready() bool {
	return b.Engine != nil && b.InitErr == nil
}

// EngineStatus is the diagnostics view of one binding.
type EngineStatus struct {
	Variant domain.Variant `json:"variant"`
	Ready   bool           `json:"ready"`
	Detail  string         `json:"detail"`
}

// Registry holds one engine per variant, built once and shared read-only.
type Registry struct {
	device   Device
	bindings map[domain.Variant]Binding
}

// NewRegistry initializes every known variant. A failing factory does not
// abort startup; the variant is recorded as unavailable.
func NewRegistry(device Device, factory EngineFactory, logger zerolog.Logger) *Registry {
	r := &Registry{device: device, bindings: map[domain.Variant]Binding{}}
	for _, variant := range domain.Variants() {
		profile, _ := LookupProfile(variant)
		binding := Binding{Profile: profile}
		if factory == nil {
			binding.InitErr = fmt.Errorf("%w: no engine factory", ErrEngineUnavailable)
		} else if engine, err := factory(profile, device); err != nil {
			binding.InitErr = fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		} else {
			binding.Engine = engine
			if reporter, ok := engine.(DeviceReporter); ok {
				r.device = reporter.Device()
			}
		}
		if binding.InitErr != nil {
			logger.Warn().Err(binding.InitErr).Str("variant", string(variant)).Msg("engine init failed")
		} else {
			logger.Debug().Str("variant", string(variant)).Str("device", string(device)).Msg("engine ready")
		}
		r.bindings[variant] = binding
	}
	return r
}

// Device returns the execution device shared by all engines: the one ready
// engines report, or the startup preference when none does.
func (r *Registry) Device() Device {
	return r.device
}

// Lookup returns the ready binding for a variant. Unknown variants are a
// configuration error; a variant whose engine failed at startup is a codec
// error wrapping ErrEngineUnavailable.
func (r *Registry) Lookup(variant domain.Variant) (Binding, error) {
	b, ok := r.bindings[variant]
	if !ok {
		return Binding{}, domain.ConfigurationError(fmt.Sprintf("unknown variant %q", variant), nil)
	}
	if !b.Ready() {
		return b, domain.CodecError("engine", fmt.Sprintf("%s engine is unavailable", variant), b.InitErr)
	}
	return b, nil
}

// Profiles returns profiles in variant order.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.bindings))
	for _, variant := range domain.Variants() {
		if b, ok := r.bindings[variant]; ok {
			out = append(out, b.Profile)
		}
	}
	return out
}

// Status lists engine readiness in variant order.
func (r *Registry) Status() []EngineStatus {
	out := make([]EngineStatus, 0, len(r.bindings))
	for _, variant := range domain.Variants() {
		b, ok := r.bindings[variant]
		if !ok {
			continue
		}
		status := EngineStatus{Variant: variant, Ready: b.Ready(), Detail: "ready on " + string(r.device)}
		if b.InitErr != nil {
			status.Detail = b.InitErr.Error()
		}
		out = append(out, status)
	}
	return out
}
