package catalog

var definitions = []Definition{
	{
		ID: "glitch", Name: "GLITCH", Icon: "G", Description: "Digital corruption & scan lines",
		Strength: "intensity",
		Params: []Param{
			num("intensity", 0, 100, 50),
			num("sliceCount", 1, 50, 10),
			num("colorShift", 0, 100, 30),
		},
	},
	{
		ID: "rgb", Name: "RGB SHIFT", Icon: "R", Description: "Chromatic aberration",
		Strength: "intensity",
		Params: []Param{
			num("offsetX", -50, 50, 10),
			num("offsetY", -50, 50, 5),
			num("intensity", 0, 100, 50),
		},
	},
	{
		ID: "noise", Name: "NOISE", Icon: "N", Description: "Static & grain overlay",
		Strength: "amount",
		Params: []Param{
			num("amount", 0, 100, 30),
			num("type", 0, 2, 0), // 0 static, 1 film grain, 2 scan lines
			flag("animated", 1),
		},
	},
	{
		ID: "vhs", Name: "VHS", Icon: "V", Description: "Retro VHS distortion",
		Params: []Param{
			num("tracking", 0, 100, 50),
			num("bleeding", 0, 100, 40),
			num("noise", 0, 100, 30),
		},
	},
	{
		ID: "pixelate", Name: "PIXEL", Icon: "X", Description: "Retro pixel sorting",
		Params: []Param{
			num("size", 2, 64, 8),
			num("sorting", 0, 100, 0),
			num("threshold", 0, 255, 128),
		},
	},
	{
		ID: "wave", Name: "WAVE", Icon: "W", Description: "Sinusoidal distortion",
		Strength: "amplitude",
		Params: []Param{
			num("amplitude", 0, 100, 20),
			num("frequency", 1, 50, 10),
			num("speed", 0, 100, 50),
		},
	},
	{
		ID: "invert", Name: "INVERT", Icon: "I", Description: "Color inversion & solarize",
		Strength: "amount",
		Params: []Param{
			num("amount", 0, 100, 100),
			num("threshold", 0, 255, 128),
			num("mode", 0, 2, 0), // 0 full, 1 partial, 2 solarize
		},
	},
	{
		ID: "digits", Name: "DIGITS", Icon: "D", Description: "Convert to number matrix",
		Params: []Param{
			num("size", 4, 24, 10),
			num("contrast", 0, 100, 50),
			num("colorMode", 0, 3, 1), // 0 green, 1 cyan, 2 original, 3 rainbow
		},
	},
	{
		ID: "binary", Name: "BINARY", Icon: "B", Description: "Binary code visualization",
		Params: []Param{
			num("size", 6, 20, 12),
			num("density", 10, 100, 70),
			flag("animated", 1),
		},
	},
	{
		ID: "ascii", Name: "ASCII", Icon: "A", Description: "ASCII art conversion",
		Params: []Param{
			num("size", 4, 16, 8),
			num("charset", 0, 2, 0), // 0 full, 1 blocks, 2 symbols
			flag("invert", 0),
		},
	},
	{
		ID: "polarity", Name: "POLARITY", Icon: "±", Description: "Plus & minus visualization",
		Params: []Param{
			num("size", 6, 28, 14),
			num("threshold", 0, 100, 50),
			num("colorMode", 0, 3, 0),
		},
	},
	{
		ID: "flow", Name: "RELIEF", Icon: "L", Description: "2D topographic contour lines",
		Params: []Param{
			num("density", 5, 100, 50),
			num("length", 0, 100, 60),
			num("thickness", 1, 8, 2),
			num("speed", 0, 100, 0),
			num("alpha", 0, 100, 100),
		},
	},
	{
		ID: "contour", Name: "CONTOUR", Icon: "C", Description: "Topographic contour lines",
		Params: []Param{
			num("levels", 3, 20, 8),
			num("smoothness", 1, 10, 5),
			flag("colorful", 1),
		},
	},
	{
		ID: "tracking", Name: "TRACKING", Icon: "T", Description: "Automated detection overlay",
		Params: []Param{
			num("targets", 0, 20, 5),
			num("sensitivity", 10, 150, 60),
			num("overlay", 0, 100, 0),
			color("mainColor", "#00ff00"),
			color("accentColor", "#00ffff"),
			flag("brackets", 1),
			flag("crosshairs", 1),
			flag("dots", 1),
			flag("scanline", 1),
			flag("grid", 1),
			flag("databoxes", 1),
			flag("labels", 1),
			flag("lines", 1),
			flag("frame", 1),
			flag("timestamp", 1),
			flag("glitch", 0),
		},
	},
	{
		ID: "threshold", Name: "THRESHOLD", Icon: "H", Description: "High contrast black & white",
		Params: []Param{
			num("level", 0, 255, 128),
			num("noise", 0, 100, 0),
			num("softness", 0, 50, 0),
			color("blackColor", "#000000"),
			color("whiteColor", "#ffffff"),
			flag("invert", 0),
		},
	},
	{
		ID: "doubleExposure", Name: "DOUBLE EXPOSURE", Icon: "E", Description: "Blend multiple frames",
		Strength: "blend",
		Params: []Param{
			num("delay", 1, 30, 10),
			num("blend", 0, 100, 50),
			num("mode", 0, 5, 0), // screen, multiply, overlay, difference, add, subtract
			num("offsetX", -50, 50, 0),
			num("offsetY", -50, 50, 0),
			color("tint", "#ffffff"),
		},
	},
	{
		ID: "glow", Name: "GLOW", Icon: "F", Description: "Dreamy glow & bloom",
		Strength: "intensity",
		Params: []Param{
			num("intensity", 0, 100, 50),
			num("radius", 1, 20, 8),
			num("threshold", 0, 255, 128),
			color("color", "#ffffff"),
			num("grain", 0, 100, 0),
			num("saturation", 0, 200, 100),
		},
	},
	{
		ID: "motionMask", Name: "MOTION MASK", Icon: "M", Description: "Show only moving areas",
		Params: []Param{
			num("blockSize", 5, 60, 20),
			num("sensitivity", 1, 100, 50),
			num("fade", 0, 100, 30),
			num("trail", 0, 100, 50),
			color("borderColor", "#00ffff"),
			flag("showBorders", 1),
			flag("invert", 0),
		},
	},
	{
		ID: "pointTracking", Name: "POINT TRACKING", Icon: "O", Description: "Track moving points",
		Params: []Param{
			num("points", 5, 100, 30),
			num("dotSize", 2, 30, 10),
			num("sensitivity", 1, 100, 50),
			color("dotColor", "#ff0000"),
			flag("connections", 0),
			num("lineWidth", 1, 10, 2),
			num("maxDistance", 50, 300, 150),
		},
	},
	{
		ID: "thermal", Name: "THERMAL", Icon: "K", Description: "Thermal imaging camera effect",
		Strength: "intensity",
		Params: []Param{
			num("intensity", 0, 100, 100),
			num("palette", 0, 3, 0), // classic, ironbow, white hot, rainbow
			num("contrast", 0, 100, 50),
			num("blur", 0, 20, 3),
		},
	},
	{
		ID: "objectMask", Name: "OBJECT MASK", Icon: "S", Description: "Detect and color main subject",
		Strength: "intensity",
		Params: []Param{
			num("intensity", 0, 100, 80),
			num("blur", 0, 20, 5),
			flag("invert", 0),
			color("maskColor", "#00ffff"),
		},
	},
	{
		ID: "dither", Name: "DITHER", Icon: "Z", Description: "Retro dithering patterns",
		Params: []Param{
			num("mode", 0, 4, 0), // ordered, floyd-steinberg, atkinson, halftone, noise
			num("colors", 2, 16, 2),
			num("scale", 1, 8, 2),
			num("contrast", 0, 100, 50),
			num("colorMode", 0, 3, 0), // mono, sepia, original, custom
			color("customColor", "#00ff00"),
		},
	},
	{
		ID: "wireframe", Name: "WIREFRAME", Icon: "Y", Description: "3D wireframe mesh visualization",
		Params: []Param{
			num("gridSize", 5, 60, 20),
			num("depth", 0, 100, 50),
			num("rotateX", -90, 90, 30),
			num("rotateY", -90, 90, 0),
			num("perspective", 100, 1000, 400),
			color("lineColor", "#00ff00"),
			color("bgColor", "#000000"),
			flag("dotted", 0),
			flag("fill", 0),
		},
	},
	{
		ID: "motionBlur", Name: "MOTION BLUR", Icon: "U", Description: "Trendy motion blur trails",
		Strength: "intensity",
		Params: []Param{
			num("mode", 0, 4, 0), // directional, radial, circular, echo, smear
			num("intensity", 0, 100, 50),
			num("angle", 0, 360, 0),
			num("samples", 3, 20, 8),
			num("centerX", 0, 100, 50),
			num("centerY", 0, 100, 50),
			color("tint", "#ffffff"),
			flag("fadeOut", 1),
		},
	},
}
