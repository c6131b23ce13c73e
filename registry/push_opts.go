package registry

// PushOption configures a Push.
type PushOption func(*pushConfig)

type pushConfig struct {
	tags        []string
	annotations map[string]string
	title       string
}

// WithTags applies additional tags after the primary tag from the ref.
func WithTags(tags ...string) PushOption {
	return func(cfg *pushConfig) {
		cfg.tags = append(cfg.tags, tags...)
	}
}

// WithAnnotations sets manifest annotations. They may override
// org.opencontainers.image.created and the layer count.
func WithAnnotations(annotations map[string]string) PushOption {
	return func(cfg *pushConfig) {
		if cfg.annotations == nil {
			cfg.annotations = make(map[string]string)
		}
		for k, v := range annotations {
			cfg.annotations[k] = v
		}
	}
}

// WithTitle sets the layer's org.opencontainers.image.title annotation.
func WithTitle(title string) PushOption {
	return func(cfg *pushConfig) {
		cfg.title = title
	}
}
