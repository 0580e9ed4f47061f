// Command billingd runs the subscription lifecycle service.
//
//	billingd serve            # HTTP API, metrics and the daily auto-resume job
//	billingd reconcile        # one auto-resume pass, for external cron
//	billingd migrate up|down  # apply or roll back database migrations
package main

func main() {
	Execute()
}
