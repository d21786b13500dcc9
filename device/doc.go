// Package device implements the instrument's register model and the command
// processor that executes decoded frames against it.
//
// Both link roles own a Model. The device side answers requests with
// Processor.HandleRequest; the controller side folds the replies it receives
// into its own copy of the model with Processor.ApplyReply, keeping running
// statistics for the analog sensors.
//
// Register banks:
//
//	target  bank         size  read                    write
//	'A'     analog-in      8   stored raw value        store
//	'D'     analog-out     8   last set value          store
//	'F'     digital-IO    13   current flag word       store, bit i sets flag i
//	'P'     pressure      32   stored value            store
//	'T'     temperature   32   stored value            store
//	'S'     stepper        -   accumulated position    add signed delta
//	'G'     global         -                           'q' quits
package device
