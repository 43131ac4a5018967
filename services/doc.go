/*
Package services exposes the hchat gateway over HTTP and provides the client
that drives it.

# Handler

Handler mounts the four handshake endpoints of a protocol.Gate under /api:

	POST /api/initiatePublish   -> protocol.InitiatePublishResponse
	POST /api/publish           -> protocol.PublishResponse
	POST /api/initiateSubscribe -> protocol.InitiateSubscribeResponse
	POST /api/subscribe         -> protocol.SubscribeResponse

Request bodies are decoded strictly: unknown or missing fields, nulls, a
wrong "type" or an oversized body all answer 400 {"error":"Invalid request"}.
Any other method answers 405 {"error":"Method not allowed"}. Rejections
carry their reason code next to the message:

	400  shape, channel, size and malformed-token failures
	403  seal, message signature, channel scope, proof of work
	425  token redeemed before its delay
	410  token older than the maximum age
	409  token already redeemed
	502  distribution or credential substrate failed

The handler applies CORS, request logging and a per-request timeout, and
records per-endpoint outcomes on a metrics.MetricsServer when one is given.

# Client

Client runs the handshakes end to end:

	c, _ := services.NewClient("https://hchat.example.org", key)
	err := c.Publish(ctx, "room1", map[string]string{"text": "hello"})

	grant, _ := c.Subscribe(ctx, []string{"room1"})
	events, _ := c.Stream(ctx, grant, []string{"room1"})
	for ev := range events {
	    if _, err := c.VerifyEvent(ev); err != nil {
	        continue
	    }
	    ...
	}

The client solves the proof of work while the redemption delay elapses and
waits the delay from the moment the token arrived, so a slow solve costs no
extra time.
*/
package services
