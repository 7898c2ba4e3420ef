package providers

const (
	// CoreMLProviderBackend runs on Apple CoreML.
	CoreMLProviderBackend ProviderBackend = "coreml"
)

// CoreML flags from coreml_provider_factory.h.
const (
	coreMLFlagUseCPUOnly          uint32 = 0x001
	coreMLFlagEnableOnSubgraph    uint32 = 0x002
	coreMLFlagOnlyEnableDeviceANE uint32 = 0x004
)

// CoreMLOptions are the CoreML execution provider settings.
type CoreMLOptions struct {
	// CPUOnly disables the GPU and neural engine.
	CPUOnly bool `json:"cpuOnly" yaml:"cpuOnly" koanf:"cpuonly"`
	// EnableOnSubgraphs lets CoreML run inside control-flow subgraphs.
	EnableOnSubgraphs bool `json:"enableOnSubgraphs" yaml:"enableOnSubgraphs" koanf:"enableonsubgraphs"`
	// OnlyANE restricts execution to devices with a neural engine.
	OnlyANE bool `json:"onlyANE" yaml:"onlyANE" koanf:"onlyane"`
}

// Flags packs the options into the provider flag word.
func (o CoreMLOptions) Flags() uint32 {
	var flags uint32
	if o.CPUOnly {
		flags |= coreMLFlagUseCPUOnly
	}
	if o.EnableOnSubgraphs {
		flags |= coreMLFlagEnableOnSubgraph
	}
	if o.OnlyANE {
		flags |= coreMLFlagOnlyEnableDeviceANE
	}
	return flags
}
