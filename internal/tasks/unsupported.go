package tasks

import "github.com/AgentShepherd/dataworks/internal/dispatch"

// These operations stay in the catalog so the parser can name them and the
// caller gets a clear answer instead of an unknown-operation error.

func generateDataOp() dispatch.Operation {
	return dispatch.Operation{
		Code:        "A1",
		Summary:     "install dependencies and run a remote data generation script for a user_email",
		Unsupported: "running downloaded scripts is not permitted",
	}
}

func cardNumberOp() dispatch.Operation {
	return dispatch.Operation{
		Code:        "A8",
		Summary:     "extract a credit card number from an image",
		Unsupported: "image text extraction needs a vision model, which is not configured",
	}
}

func transcribeOp() dispatch.Operation {
	return dispatch.Operation{
		Code:        "B8",
		Summary:     "transcribe an audio file",
		Unsupported: "audio transcription is not available",
	}
}
