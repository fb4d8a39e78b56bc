// Package golimma holds the input plumbing shared by the differential
// expression tools: opening local or gs:// paths, sniffing compression and
// guessing delimiters. The statistics live in the limma subpackage.
package golimma
