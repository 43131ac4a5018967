/*
Package testutil provides fixtures shared by the gateway's tests.

RSA key generation is slow, so keys are generated once per test binary and
handed out by name:

	system := testutil.RSAKeys(t, "system")
	sender := testutil.RSAKeys(t, "alice")

Time is controlled with a mock clock starting at Epoch:

	clk := testutil.NewMockClock()
	clk.Add(500 * time.Millisecond)

NewTestConfig returns a valid protocol.Config with a low proof-of-work
difficulty, and Solve grinds a response for an issued token:

	cfg := testutil.NewTestConfig(testutil.WithDifficulty(4))
	response := testutil.Solve(t, token, cfg.Publish.Difficulty)

This package is intended for testing purposes only and should not be used in
production code.
*/
package testutil
