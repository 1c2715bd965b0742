package debrid

import "errors"

// Resolution failure kinds. Handlers map these onto HTTP statuses, so every
// failure path out of this package wraps exactly one of them.
var (
	// ErrResolutionTimeout means the provider never produced file metadata
	// within the polling budget.
	ErrResolutionTimeout = errors.New("debrid: torrent metadata polling budget exhausted")

	// ErrNoFilesAvailable means the provider returned an empty file listing.
	ErrNoFilesAvailable = errors.New("debrid: torrent contains no files")

	// ErrNoLinksGenerated means the provider accepted the file selection but
	// never produced a download link.
	ErrNoLinksGenerated = errors.New("debrid: no download links generated")

	// ErrProviderAuth means the API credential was rejected. Never retried.
	ErrProviderAuth = errors.New("debrid: provider rejected credentials")

	// ErrProviderUnavailable means the provider kept failing transiently
	// after the retry budget was spent.
	ErrProviderUnavailable = errors.New("debrid: provider unavailable")
)
