package dto

import (
	"vidstream/domain/models"
)

func VideoToTrendingResponse(video *models.Video) TrendingVideoResponse {
	return TrendingVideoResponse{
		ID:            video.ID,
		Title:         video.Title,
		Category:      video.Category,
		ThumbnailURL:  video.ThumbnailURL,
		VideoURL:      video.VideoURL,
		Duration:      video.Duration,
		Views:         video.Views,
		TrendingScore: video.TrendingScore,
		PublishedAt:   video.PublishedAt,
	}
}

func VideosToTrendingResponses(videos []*models.Video) []TrendingVideoResponse {
	out := make([]TrendingVideoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, VideoToTrendingResponse(v))
	}
	return out
}

func VideoToStatusResponse(video *models.Video) *VideoStatusResponse {
	if video == nil {
		return nil
	}
	return &VideoStatusResponse{
		ID:           video.ID,
		Status:       video.Status,
		Progress:     video.ProcessingProgress,
		Error:        video.ProcessingError,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		PublishedAt:  video.PublishedAt,
		StartedAt:    video.ProcessingStartedAt,
	}
}
