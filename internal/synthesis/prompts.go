package synthesis

import "fmt"

const (
	noDescriptionPlan = "No description provided."
	noDescription     = "A general overview."
)

func describe(description, fallback string) string {
	if description == "" {
		return fallback
	}
	return description
}

func planPrompt(topic, description string) string {
	return fmt.Sprintf(`You are a research assistant. Your goal is to generate a list of 3-5 highly targeted Google search queries
that will find the best information for a user's request.

The user wants to learn about: "%s"
Here is their specific description and background: "%s"

Based on this, generate a list of 3-5 concise search queries.
The output should be ONLY a list of double-quoted strings. For example: ["query 1", "query 2", "query 3"]
`, topic, describe(description, noDescriptionPlan))
}

func outlinePrompt(topic, description, corpus string) string {
	return fmt.Sprintf(`Act as an expert instructional designer creating a personalized learning plan.
The user wants to learn about: "%s"
Their background and specific request is: "%s"

Based on the user's request and the provided source text, create a comprehensive, logical table of contents.
Tailor the structure to the user's needs (e.g., focus on implementation if they are a developer,
or on theory if they ask for math).

The output should be ONLY the table of contents in Markdown format.

Here is the raw source text:
---
%s
---
`, topic, describe(description, noDescription), corpus)
}

func imageQueryPrompt(topic, title string) string {
	return fmt.Sprintf(`You are a research assistant. Your task is to generate one, single, highly descriptive Google Image search query
to find the best possible diagram, illustration, or photo for the sub-topic: "%s"
within the main topic of "%s".

The query should be optimized to find educational and clear images.
Return ONLY the single search query string and nothing else. Do not add quotes.
`, title, topic)
}

func documentPrompt(topic, description, outline, corpus, images string) string {
	return fmt.Sprintf(`You are an expert author writing a personalized note-taking book guide for a reader.
The topic is: "%s"
The reader's background and specific request for this topic is: "%s"

Your task is to write a complete, in-depth guide following the provided Markdown outline.
Use the provided source text. Most importantly, **tailor your language, examples, and analogies
to the reader's described background and goals.** For example, if they are a biologist, use biological analogies.
If they want code, provide code snippets. If they want math, explain in depth with math.

CRITICAL INSTRUCTIONS (Links, Images, etc.):
1.  Follow the provided outline exactly.
2.  If a source URL contains exceptionally valuable information for a deep-dive, add a "further reading" link like: "*(For a deeper dive, see: [Article Title](URL))*". You MUST use the real URL from the source list.
3.  Embed provided images using Markdown: `+"`![Generated alt text](image_url_here)`"+`.

---
HERE IS THE EXACT MARKDOWN OUTLINE TO FOLLOW:
%s
---
HERE IS THE RAW SOURCE TEXT (EACH SOURCE IS LABELED):
%s
---
HERE ARE THE IMAGE URLS FOR SPECIFIC SECTIONS:
%s
---
`, topic, describe(description, noDescription), outline, corpus, images)
}
