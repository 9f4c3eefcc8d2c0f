package model

// Artifact is implemented by proxies and anything generated around them.
// Describers refuse to model artifact types, so a proxy is never proxied.
type Artifact interface {
	ProxyArtifact()
}

// ArtifactMethod is the marker method name of Artifact.
const ArtifactMethod = "ProxyArtifact"
