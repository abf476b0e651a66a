package store

import (
	"fmt"

	"github.com/pocketbase/dbx"

	"github.com/kenny-hash/CyclopsCmd/internal/model"
)

// InsertResults appends results to command_results inside tx. Used by the
// Result Sink (internal/sink) to commit one flushed batch transactionally,
// per spec §4.7.
func InsertResults(tx *dbx.Tx, results []model.PersistedResult) error {
	for _, r := range results {
		_, err := tx.NewQuery(`
			INSERT INTO command_results (ip, user, password, port, command, output, exit_status, timestamp)
			VALUES ({:ip}, {:user}, {:password}, {:port}, {:command}, {:output}, {:exit_status}, {:timestamp})`).
			Bind(dbx.Params{
				"ip": r.IP, "user": r.User, "password": r.Password, "port": r.Port,
				"command": r.Command, "output": r.Output, "exit_status": r.ExitStatus, "timestamp": r.Timestamp,
			}).Execute()
		if err != nil {
			return fmt.Errorf("insert result for %s: %w", r.IP, err)
		}
	}
	return nil
}
