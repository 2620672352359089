// Package styles holds the fixed table of conversion styles. The table is
// built once at init and never mutated.
package styles

// Category groups styles for display.
type Category string

const (
	CategoryClassic Category = "classic"
	CategoryPixar   Category = "pixar"
	CategoryModern  Category = "modern"
)

// Template maps a style id to the prompt sent to the style-transfer provider.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Prompt      string   `json:"prompt"`
	Category    Category `json:"category"`
	Image       string   `json:"image"`
}

const previewBase = "https://scmh-shanghai.oss-cn-shanghai.aliyuncs.com/dsn/images/"

var templates = []Template{
	{
		ID:          "snow-white",
		Name:        "Snow White, modern film",
		Description: "Modern Disney feature film look",
		Prompt:      "Make it into a classic Disney hand drawn style animated film",
		Category:    CategoryClassic,
		Image:       previewBase + "tmplhscrdh9.jpg",
	},
	{
		ID:          "cinderella",
		Name:        "Cinderella, hand-drawn classic",
		Description: "Elegant golden-age princess style",
		Prompt: "Create a Disney princess version animation in classic hand drawn Disney style from the 1930s to 1950s, " +
			"reminiscent of movies such as Snow White and the Seven Dwarfs, Cinderella, and Sleeping Beauty. " +
			"This character should retain the subject's facial features, including the bone structure, expressive eyes, lips and skin tone, " +
			"while seamlessly integrating retro Disney aesthetics. Maintain the elegance and simplicity of early Disney princesses. " +
			"The color palette should be slightly soft but harmonious, using traditional cel shadows and hand drawn textures to create a truly golden age Disney feel. " +
			"The scene should be a castle, magical forest, or grand ballroom from a storybook, evoking the nostalgic charm of classic Disney movies. " +
			"The background should have hand drawn, watercolor like textures to ensure that it gives a feeling of a vintage Disney movie scene.",
		Category: CategoryClassic,
		Image:    previewBase + "573dc94d2b66d6c05b151aad618f145b.jpg",
	},
	{
		ID:          "bambi",
		Name:        "Bambi, woodland classic",
		Description: "Natural forest storybook style",
		Prompt:      "Classic Disney style: Hand-drawn 2D, vivid saturated colors, soft rounded character outlines, warm fairy-tale lighting.",
		Category:    CategoryClassic,
		Image:       previewBase + "85c100280e033d687accbd0bcd95c2fd.jpeg",
	},
	{
		ID:          "mulan",
		Name:        "Mulan, ancient China",
		Description: "Disney take on a historical Chinese setting",
		Prompt: "Disney animation style, blend of hand-drawn and 3D elements, ancient Chinese setting, traditional Chinese architecture (wooden houses, ancestral halls), " +
			"oriental character design (long black hair, petal-shaped lips), warm earthy tones with bright accents, historical fairy tale vibe, family-friendly illustration",
		Category: CategoryClassic,
		Image:    previewBase + "941ahqx9bnrma0csemc80gj5ww.png",
	},
	{
		ID:          "toy-story",
		Name:        "Toy Story, 3D",
		Description: "Pixar 3D animation with toy-like materials",
		Prompt:      "Pixar Toy Story style, 3D animation, toy-like texture, plastic material, bright colors, clean lighting, childhood nostalgia, playful atmosphere, detailed 3D rendering",
		Category:    CategoryPixar,
		Image:       previewBase + "f085f2e48f37c1dc5c238c5ffde136af.jpg",
	},
	{
		ID:          "frozen",
		Name:        "Frozen, ice and snow",
		Description: "Winter magic in blue and white",
		Prompt:      "Disney Frozen style, ice and snow magic, crystalline textures, cool blue and white tones, winter wonderland, ice castle aesthetic, magical sparkles, detailed snow effects",
		Category:    CategoryModern,
		Image:       previewBase + "tmpc46is7bu.jpg",
	},
	{
		ID:          "zootopia",
		Name:        "Zootopia, realistic cartoon",
		Description: "3D cartoon with detailed fur and skin",
		Prompt: "Disney animation style, 3D realistic cartoon illustration, anthropomorphic animal characters (detailed fur texture, expressive faces), " +
			"Zootopia cityscape (mix of fantasy and realism), vibrant color palette, exaggerated cartoon movements, soft lighting, detailed urban environments, family-friendly art",
		Category: CategoryModern,
		Image:    previewBase + "6244b887612cf8c60d581dc9a8ceff51.jpeg",
	},
	{
		ID:          "finding-nemo",
		Name:        "Finding Nemo, ocean",
		Description: "Underwater world in blue and coral",
		Prompt:      "Pixar Finding Nemo style, underwater ocean animation, coral reef colors, marine life aesthetic, flowing water effects, tropical fish colors, ocean depth lighting, 3D underwater world",
		Category:    CategoryPixar,
		Image:       previewBase + "61c3c68198b2ab11a191df0e79504585.jpeg",
	},
	{
		ID:          "wreck-it-ralph",
		Name:        "Wreck-It Ralph, pixel and 3D",
		Description: "Retro game pixels blended with 3D characters",
		Prompt: "Disney animation style, blend of pixel art and 3D illustration, retro video game world (pixelated scenes, blocky character shapes, bright pixel colors), " +
			"3D character details (Ralph's fur, clothing texture), real-world scenes (3D realistic), nostalgic game vibe, vibrant color palette, family-friendly art",
		Category: CategoryPixar,
		Image:    previewBase + "eb624b85a3427bdf60fc9b60211932d5.jpeg",
	},
	{
		ID:          "the-lion-king",
		Name:        "The Lion King, CGI",
		Description: "Realistic CGI on the African savanna",
		Prompt: "Disney animation style, CGI realistic illustration, African savanna landscape, vivid bright colors, lifelike animal fur texture, " +
			"detailed grasslands and trees, dramatic lighting, epic fairy tale scene, high-definition details, natural atmosphere",
		Category: CategoryModern,
		Image:    previewBase + "377c38a66f28a1a1d18df2d341056526.jpeg",
	},
}

var byID = func() map[string]Template {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return m
}()

// Lookup returns the template registered under id.
func Lookup(id string) (Template, bool) {
	t, ok := byID[id]
	return t, ok
}

// All returns a copy of every template in display order.
func All() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// ByCategory returns the templates of one category in display order.
func ByCategory(c Category) []Template {
	out := []Template{}
	for _, t := range templates {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out
}
