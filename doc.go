// Package smsrelay relays organisation messages to subscribers through the
// phones of volunteer donors.
//
// A coordinator's message is fanned out as one attempt per subscriber, each
// assigned to a donor round-robin. Donors report how their attempts went;
// attempts that fail, are declined, or time out are handed to the next
// eligible donor in the chain. When no peer is left the content goes out
// through a carrier SMS gateway once, and after that the attempt is
// exhausted.
//
// smsrelay is a library. The daemon in cmd/smsrelayd wires it to MongoDB or
// Redis, Firebase push and Twilio, and serves the HTTP API from package api.
//
// Quick start:
//
//	r, err := smsrelay.New(
//	    smsrelay.WithStore(memory.New()),
//	    smsrelay.WithPushGateway(fcm.New(fcmCfg)),
//	    smsrelay.WithCarrierGateway(twilio.New(twilioCfg)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Start(ctx)
//	defer r.Stop(ctx)
//
//	msg, err := r.CreateMessage(ctx, orgID, coordinatorID, "Bins go out tonight")
package smsrelay
