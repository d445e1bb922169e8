// Package policyfile loads declared Warden policies and their HTTP routes
// from YAML, and watches the file for changes.
//
// Format:
//
//	policies:
//	  - service: shop
//	    name: order-rate
//	    users: [alice, bob]
//	    trigger_type: GREATER_THAN
//	    aggregator: SUM
//	    thresholds: [100]
//	    time_unit: 5min
//	    cron_entry: "* * * * *"
//	    routes:
//	      - url: /orders/.*
//	        method: POST|PUT
package policyfile
