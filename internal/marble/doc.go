// Package marble parses, renders and compares marble diagrams.
//
// A marble diagram is a compact textual timeline of a stream. Each character
// occupies one tick of virtual time unless stated otherwise:
//
//	-        one tick of silence
//	a-z 0-9  a value frame (looked up in the values map, or the character itself)
//	#        an error frame, ends the sequence
//	|        a completion frame, ends the sequence
//	(ab)     frames a and b at the tick of the opening parenthesis
//	^        subscription point
//	!        unsubscription point
//	' '      ignored, zero ticks
//	500ms    time progression (ms, s, m), only after whitespace or at the start
//
// Ticks are virtual milliseconds: "1s" advances 1000 ticks.
//
// Parse turns a diagram into Frames, Render turns Frames back into a diagram,
// and Compare diffs two frame sequences, reporting the first divergence as a
// *MismatchError.
package marble
