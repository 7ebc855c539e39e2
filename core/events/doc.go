// Package events defines the controller events emitted on the event bus.
//
// Available event types:
//   - LayerEvent: state transition of an optimizer layer
//   - CommandEvent: dispatch commands applied during a control step
package events
