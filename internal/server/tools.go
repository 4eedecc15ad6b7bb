package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func outputPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional path to write the resulting image to. The format follows the extension. When omitted the image is returned as base64-encoded PNG.",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format, channel count and file size. The image is cached for subsequent operations.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Skew Analysis
		{
			Name:        "image_binarize",
			Description: "Convert an image to a black/white foreground mask with Otsu's threshold on inverted luminance. Dark ink becomes white (255) foreground. Returns the chosen threshold and foreground pixel count.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty(),
					"output_path": outputPathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_skew_angle",
			Description: "Estimate the skew of the content in an image without modifying it. Returns the correction angle in degrees (positive means the content must turn counter-clockwise) and the minimum-area rectangle around the foreground.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_deskew",
			Description: "Straighten an image by rotating it about its center by the estimated skew angle. Output has the same size and channel count as the input; exposed borders replicate edge pixels. Images with no foreground are returned unchanged.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty(),
					"output_path": outputPathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_skew_overlay",
			Description: "Draw the detected minimum-area rectangle and the estimated skew angle on a copy of the image. Useful to check what the estimator locked onto.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (e.g. #ff0000). Default #ff0000",
						"default":     "#ff0000",
					},
					"output_path": outputPathProperty(),
				},
				"required": []string{"path"},
			},
		},
	}
}
