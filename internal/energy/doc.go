// Package energy looks up the regional energy mix (carbon intensity and fuel
// shares) consulted once per observer connection. A failed or unconfigured
// lookup yields the fixed world-average Fallback mix instead of an error, so
// session start never blocks on the collaborator.
package energy
