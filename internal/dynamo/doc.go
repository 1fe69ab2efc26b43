// Package dynamo provides the numerical primitives shared by the herding
// simulation.
//
//   - [State]: flat vector of positions followed by velocities
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper over a [System]
//
// The world package wraps each physics body as a [System] and advances it
// with whichever [Integrator] the experiment registry selected.
//
// # Errors
//
// Sentinel errors are declared here so that every package can match them with
// errors.Is regardless of which layer wrapped them.
package dynamo
