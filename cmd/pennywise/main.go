// Pennywise serves the budget API of the Pennywise expense tracker and
// delivers budget alert emails.
//
// It keeps per-period spending totals in a cache, converts expenses to each
// user's base currency, and queues an alert email whenever spending crosses
// one of the user's budget thresholds.
//
// Usage:
//
//	# Start the API with an embedded alert worker
//	pennywise run --config config.yaml
//
//	# Run only the alert worker
//	pennywise worker
//
//	# Inspect and maintain the alert queue
//	pennywise queue stats -o json
//	pennywise queue retry
//	pennywise queue clean --grace 72h
//
//	# Drop cached budget totals
//	pennywise cache clear --pattern 'budget:u1:*'
package main

import "os"

func main() {
	os.Exit(Execute())
}
