package handler

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/fedtest"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
)

func TestCommunityHandler_CreateAndPost(t *testing.T) {
	net := fedtest.NewNetwork(t)
	srv := newTestServer(t, net.AddInstance("alpha.test"), nil, false)
	owner := srv.Person("owner", false)
	dave := srv.Person("dave", false)
	ownerToken := srv.token(t, owner.ID)

	var community dto.CommunityItem
	w := srv.do(t, http.MethodPost, "/api/v1/communities", ownerToken, dto.CreateCommunityRequest{Name: "golang"})
	require.Equal(t, response.CodeSuccess, decode(t, w, &community))
	assert.Equal(t, "http://alpha.test/c/golang", community.ApID)
	assert.True(t, community.Local)

	w = srv.do(t, http.MethodPost, "/api/v1/communities", ownerToken, dto.CreateCommunityRequest{Name: "golang"})
	assert.Equal(t, response.CodeDuplicateAction, decode(t, w, nil))
	w = srv.do(t, http.MethodPost, "/api/v1/communities", ownerToken, dto.CreateCommunityRequest{Name: "no spaces"})
	assert.Equal(t, response.CodeParamError, decode(t, w, nil))

	var got dto.CommunityItem
	require.Equal(t, response.CodeSuccess, decode(t, srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/communities/%d", community.ID), "", nil), &got))
	assert.Equal(t, community, got)
	assert.Equal(t, response.CodeResourceNotFound, decode(t, srv.do(t, http.MethodGet, "/api/v1/communities/999", "", nil), nil))

	modPath := fmt.Sprintf("/api/v1/communities/%d/moderators", community.ID)
	daveToken := srv.token(t, dave.ID)
	w = srv.do(t, http.MethodPost, modPath, daveToken, dto.AddModeratorRequest{PersonID: dave.ID})
	assert.Equal(t, response.CodePermissionDenied, decode(t, w, nil))
	w = srv.do(t, http.MethodPost, modPath, ownerToken, dto.AddModeratorRequest{PersonID: dave.ID})
	assert.Equal(t, response.CodeSuccess, decode(t, w, nil))

	var post dto.PostItem
	w = srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/communities/%d/posts", community.ID), daveToken, dto.CreatePostRequest{Name: "first post"})
	require.Equal(t, response.CodeSuccess, decode(t, w, &post))
	assert.Equal(t, community.ApID, post.Community)
	assert.Equal(t, "alpha.test", activity.Host(post.ApID))

	var gotPost dto.PostItem
	require.Equal(t, response.CodeSuccess, decode(t, srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/posts/%d", post.ID), "", nil), &gotPost))
	assert.Equal(t, post, gotPost)
}

func TestCommunityHandler_FollowRemote(t *testing.T) {
	ctx := context.Background()
	net := fedtest.NewNetwork(t)
	alpha := net.AddInstance("alpha.test")
	srv := newTestServer(t, net.AddInstance("beta.test"), nil, false)

	owner := alpha.Person("owner", false)
	community := alpha.Community(owner, "main")
	bob := srv.Person("bob", false)
	token := srv.token(t, bob.ID)

	var item dto.CommunityItem
	w := srv.do(t, http.MethodPost, "/api/v1/communities/follow", token, dto.FollowRequest{Community: community.ApID})
	require.Equal(t, response.CodeSuccess, decode(t, w, &item))
	assert.Equal(t, community.ApID, item.ApID)
	assert.False(t, item.Local)

	net.Flush(ctx)
	followers, err := alpha.Repos.Communities.ListFollowers(community.ID)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, bob.ApID, followers[0].ApID)

	w = srv.do(t, http.MethodPost, "/api/v1/communities/unfollow", token, dto.FollowRequest{Community: community.ApID})
	require.Equal(t, response.CodeSuccess, decode(t, w, nil))
	net.Flush(ctx)
	followers, err = alpha.Repos.Communities.ListFollowers(community.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)

	w = srv.do(t, http.MethodPost, "/api/v1/communities/follow", token, dto.FollowRequest{Community: "http://alpha.test/c/missing"})
	assert.Equal(t, response.CodeResourceNotFound, decode(t, w, nil))
}

func TestPersonHandler(t *testing.T) {
	net := fedtest.NewNetwork(t)
	srv := newTestServer(t, net.AddInstance("alpha.test"), nil, false)
	owner := srv.Person("owner", true)

	var me dto.PersonBrief
	require.Equal(t, response.CodeSuccess, decode(t, srv.do(t, http.MethodGet, "/api/v1/persons/me", srv.token(t, owner.ID), nil), &me))
	assert.Equal(t, owner.ApID, me.ApID)
	assert.True(t, me.Local)

	assert.Equal(t, response.CodeAuthFailed, decode(t, srv.do(t, http.MethodGet, "/api/v1/persons/me", "", nil), nil))

	var got dto.PersonBrief
	require.Equal(t, response.CodeSuccess, decode(t, srv.do(t, http.MethodGet, fmt.Sprintf("/api/v1/persons/%d", owner.ID), "", nil), &got))
	assert.Equal(t, me, got)
	assert.Equal(t, response.CodeResourceNotFound, decode(t, srv.do(t, http.MethodGet, "/api/v1/persons/404", "", nil), nil))
}
