package supervisor

import (
	"log/slog"

	"github.com/edgestream/streamsup/internal/model"
	"github.com/edgestream/streamsup/internal/versioning"
)

// handleVersionUpdate routes a VERSION_UPDATE event to the versioning
// collaborator. It is a thin pass-through: the Supervisor Core's own scope
// ends at dispatch.
func handleVersionUpdate(logger *slog.Logger, evt model.Event) {
	versioning.Check(logger, evt.Version)
}
