// Package hardware drives the water sensor, water pump, servo and camera.
//
// Two driver sets exist. The periph drivers talk to Raspberry Pi GPIO and
// PWM through periph.io and shell out to the still-capture tool for the
// camera. The simulated drivers keep the same contracts on development
// hosts without hardware.
//
// Every call blocks for a bounded time. Callers pass a context so a
// cancelled request stops waiting where the hardware allows it.
package hardware
