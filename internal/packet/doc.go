// Package packet defines the motion-sensor packet model and its JSON wire
// decoding. It validates inbound packets from wearable devices: the three
// identifier fields, the producer timestamp, and the six motion axes are
// required; battery and RSSI telemetry are optional.
package packet
