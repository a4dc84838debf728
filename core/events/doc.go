// Package events defines the typed event contract of a voice session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - session.*
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - turn_state.*
//
// Semantics used across the package:
//
//   - Updated: mutable point-in-time snapshot that supersedes the previous one.
//   - Final: terminal immutable text for the current turn phase.
//   - Level: normalized loudness in [0,1], emitted at most 10 times a second.
//
// session events
//
//   - StateChanged (session.state_changed): the session moved between states.
//   - SessionError (session.error): an error the user should see, with flags
//     telling a UI whether retrying can help or settings must be opened.
//
// user_input events
//
//   - UserSpeechStarted (user_input.speech_started): the recognizer heard
//     speech.
//   - UserTranscriptUpdated (user_input.transcript_updated): live transcript
//     snapshot.
//   - UserTranscriptFinal (user_input.transcript_final): the transcript the
//     turn is answered with.
//   - UserAudioLevel (user_input.audio_level): microphone level.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): generation began.
//   - AssistantResponseFinal (assistant_response.final): the complete response
//     text.
//
// assistant_speech events
//
//   - AssistantSpeechStarted (assistant_speech.started): playback began.
//   - AssistantSpeechFinished (assistant_speech.finished): playback completed.
//   - AssistantSpeechCancelled (assistant_speech.cancelled): playback was cut
//     short.
//   - AssistantAudioLevel (assistant_speech.audio_level): level of the
//     synthesized voice.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): a turn produced an exchange.
//   - TurnCancelled (turn_state.cancelled): the turn in progress was torn down.
package events
