package qwen

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// LanguageName returns the target language's own name ("日本語", "Français").
// Unknown or undefined tags fall back to English.
func LanguageName(tag language.Tag) string {
	if tag == language.Und {
		return "English"
	}
	base, _ := tag.Base()
	name := display.Self.Name(language.Make(base.String()))
	if name == "" {
		return "English"
	}
	return name
}

// BuildInstruction renders the system prompt that asks the vision model for
// a short motion description of the pictured subject, written in tag's language.
func BuildInstruction(tag language.Tag) string {
	return fmt.Sprintf(`Look carefully at the given Disney-style animated character image. Based on the actual pose and state of the people in it, infer and write a prompt for an image-to-video model. Output only the prompt itself.

Requirements:
- Subject: must be the real person or people in the image, with an appearance adjective (for example: a beautiful girl, a lively boy).
- Scene: must be the real scene in the image, with a descriptive adjective (for example: a cozy living room, a quiet park).
- Action: infer a plausible dynamic action from the current pose.
- Logic: a seated person may stand up, turn around or wave; a standing person may walk, turn or bend down.
- Do not use static words (sitting, standing, holding, lying, still, motionless).
- Use dynamic verbs (walk, run, jump, wave, turn, bend, stretch, rise).
- Keep it under 40 words, shaped as: adjective + subject in adjective + scene doing a dynamic action.

Examples:
- One person: a beautiful girl slowly walks forward in a lovely garden
- Several people: a lively boy chases around a cozy living room while his graceful mother smiles and watches
- A group: a group of young people stroll and chat in a quiet park

You must write the result in %s and in no other language.`, LanguageName(tag))
}
